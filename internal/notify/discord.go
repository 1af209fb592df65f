package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"prophit/internal/predict"
)

// Discord posts resolution announcements to a channel. A nil announcer is
// valid and drops every message, so callers never need to branch on whether
// Discord is configured.
type Discord struct {
	session   *discordgo.Session
	channelID string
	log       *slog.Logger
}

func NewDiscord(token, channelID string, logger *slog.Logger) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID, log: logger}, nil
}

// AnnounceResolution is best effort: a Discord outage never fails the
// resolution that triggered it.
func (d *Discord) AnnounceResolution(pred predict.Prediction, scored int) {
	if d == nil {
		return
	}
	if pred.ActualResult == nil {
		return
	}
	result := pred.Options[*pred.ActualResult]
	oracle := pred.Options[pred.OracleChoice]
	verdict := "the oracle called it"
	if *pred.ActualResult != pred.OracleChoice {
		verdict = "the oracle missed"
	}
	msg := fmt.Sprintf("**Prediction #%d resolved:** %s\nResult: **%s** (oracle picked %s at %d%%, %s). Scored %d submissions.",
		pred.ID, strings.Join(pred.Options, " / "), result, oracle, pred.OracleConfidence, verdict, scored)
	if _, err := d.session.ChannelMessageSend(d.channelID, msg); err != nil {
		d.log.Warn("discord announce failed", "prediction_id", pred.ID, "error", err)
	}
}

func (d *Discord) Close() {
	if d == nil || d.session == nil {
		return
	}
	_ = d.session.Close()
}
