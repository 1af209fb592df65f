package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"prophit/internal/predict"
	"prophit/internal/syncq"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type predictionsPayload struct {
	Predictions []predict.Prediction `json:"predictions"`
}

type leaderboardPayload struct {
	Rows   []predict.LeaderboardEntry `json:"rows"`
	Season int                        `json:"season"`
	Week   int                        `json:"week"`
}

type statsPayload struct {
	Stats  predict.UserStats `json:"stats"`
	Tier   string            `json:"tier"`
	Badges []string          `json:"badges"`
}

type submissionsPayload struct {
	Submissions []predict.Submission `json:"submissions"`
}

type syncPayload struct {
	Results []predict.ReplayResult `json:"results"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptConfidence() (int, error) {
	for {
		v, err := promptInt64("Confidence (0-100)", 0)
		if err != nil {
			return 0, err
		}
		if v > int64(predict.MaxConfidence) {
			printWarn(fmt.Sprintf("Confidence must be between %d and %d.", predict.MinConfidence, predict.MaxConfidence))
			continue
		}
		return int(v), nil
	}
}

func renderPredictionsList(raw map[string]any, view string) error {
	payload, err := decodeInto[predictionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== PREDICTION BOARD (%s) ==\n", strings.ToUpper(view))
	if len(payload.Predictions) == 0 {
		printInfo("No predictions in this view.")
		return nil
	}
	fmt.Printf("%-6s %-4s %-12s %-36s %-18s %6s %-17s %6s\n", "ID", "WK", "CATEGORY", "OPTIONS", "ORACLE", "CONF", "CLOSES/RESULT", "SUBS")
	for _, p := range payload.Predictions {
		closing := p.ExpiresAt.Local().Format("2006-01-02 15:04")
		if p.Status == predict.StatusResolved && p.ActualResult != nil {
			closing = "-> " + truncate(p.Options[*p.ActualResult], 14)
		}
		fmt.Printf("%-6d %-4d %-12s %-36s %-18s %5d%% %-17s %6d\n",
			p.ID,
			p.Week,
			truncate(p.Category, 12),
			truncate(strings.Join(p.Options, " / "), 36),
			truncate(p.Options[p.OracleChoice], 18),
			p.OracleConfidence,
			closing,
			p.SubmissionCount,
		)
	}
	fmt.Println()
	return nil
}

func renderPredictionDetail(raw map[string]any) error {
	p, err := decodeInto[predict.Prediction](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== PREDICTION #%d ==\n", p.ID)
	fmt.Printf("Season/Week:  %d / %d\n", p.Season, p.Week)
	fmt.Printf("Category:     %s\n", p.Category)
	fmt.Printf("Status:       %s\n", p.Status)
	fmt.Println("Options:")
	for i, opt := range p.Options {
		marker := " "
		if i == p.OracleChoice {
			marker = "*"
		}
		fmt.Printf("  [%d]%s %s\n", i, marker, opt)
	}
	fmt.Printf("Oracle:       %s at %d%%\n", p.Options[p.OracleChoice], p.OracleConfidence)
	if strings.TrimSpace(p.OracleRationale) != "" {
		fmt.Printf("Rationale:    %s\n", p.OracleRationale)
	}
	if len(p.DataRefs) > 0 {
		fmt.Printf("Data refs:    %s\n", strings.Join(p.DataRefs, ", "))
	}
	if p.Status == predict.StatusResolved && p.ActualResult != nil {
		result := p.Options[*p.ActualResult]
		if *p.ActualResult == p.OracleChoice {
			fmt.Printf("Result:       %s (oracle was right)\n", result)
		} else {
			fmt.Printf("Result:       %s (oracle missed)\n", result)
		}
		if p.ResolvedAt != nil {
			fmt.Printf("Resolved at:  %s\n", p.ResolvedAt.Local().Format("2006-01-02 15:04"))
		}
	} else {
		fmt.Printf("Closes at:    %s\n", p.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Submissions:  %d\n", p.SubmissionCount)
	fmt.Println()
	return nil
}

func renderSubmissionResult(raw map[string]any) error {
	sub, err := decodeInto[predict.Submission](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Submitted: prediction #%d, option %d at %d%% confidence.",
		sub.PredictionID, sub.Choice, sub.Confidence))
	return nil
}

func renderLeaderboard(raw map[string]any, week int, self string) error {
	payload, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", leaderboardTitle(payload.Season, payload.Week))
	if len(payload.Rows) == 0 {
		printInfo("No ranked forecasters yet.")
		return nil
	}
	fmt.Printf("%-5s %-18s %-10s %8s %7s %5s %7s %6s %-28s\n", "RANK", "FORECASTER", "TIER", "POINTS", "ACC", "VOL", "STREAK", "BEATS", "BADGES")
	for _, row := range payload.Rows {
		line := fmt.Sprintf("%-5d %-18s %-10s %8d %6.1f%% %5d %7d %6d %-28s",
			row.Rank,
			truncate(row.Username, 18),
			row.Tier,
			row.TotalPoints,
			row.AccuracyRate*100,
			row.TotalPredictions,
			row.CurrentStreak,
			row.OracleBeats,
			truncate(strings.Join(row.Badges, ","), 28),
		)
		if self != "" && row.Username == self {
			accent.Println(line)
		} else {
			fmt.Println(line)
		}
	}
	fmt.Println()
	return nil
}

func leaderboardTitle(season, week int) string {
	if week > 0 {
		return fmt.Sprintf("SEASON %d / WEEK %d LEADERBOARD", season, week)
	}
	return fmt.Sprintf("SEASON %d LEADERBOARD", season)
}

func renderStats(raw map[string]any, week int) error {
	payload, err := decodeInto[statsPayload](raw)
	if err != nil {
		return err
	}
	st := payload.Stats
	scope := "season"
	if week > 0 {
		scope = fmt.Sprintf("week %d", week)
	}
	accent.Printf("\n== YOUR STATS (%s) ==\n", scope)
	fmt.Printf("Tier:            %s\n", payload.Tier)
	fmt.Printf("Total points:    %d\n", st.TotalPoints)
	fmt.Printf("Predictions:     %d (%d correct)\n", st.TotalPredictions, st.CorrectPredictions)
	fmt.Printf("Accuracy:        %s\n", colorizePercent(st.AccuracyRate*100))
	fmt.Printf("Current streak:  %d\n", st.CurrentStreak)
	fmt.Printf("Best streak:     %d\n", st.BestStreak)
	fmt.Printf("Oracle beats:    %d\n", st.OracleBeats)
	fmt.Printf("Avg confidence:  %.1f%%\n", st.AverageConfidence)
	if len(payload.Badges) > 0 {
		fmt.Printf("Badges:          %s\n", strings.Join(payload.Badges, ", "))
	}
	fmt.Println()
	return nil
}

func renderSubmissions(raw map[string]any) error {
	payload, err := decodeInto[submissionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== YOUR SUBMISSIONS ==")
	if len(payload.Submissions) == 0 {
		printInfo("No submissions yet.")
		return nil
	}
	fmt.Printf("%-6s %-8s %6s %6s %-9s %7s %7s %-17s\n", "ID", "PRED", "CHOICE", "CONF", "RESULT", "POINTS", "CALIB", "SUBMITTED")
	for _, s := range payload.Submissions {
		result := "pending"
		points := "-"
		calib := "-"
		if s.IsCorrect != nil {
			if *s.IsCorrect {
				result = success.Sprint("correct")
			} else {
				result = danger.Sprint("wrong")
			}
		}
		if s.PointsEarned != nil {
			points = strconv.Itoa(*s.PointsEarned)
		}
		if s.ConfidenceAccuracy != nil {
			calib = fmt.Sprintf("%.2f", *s.ConfidenceAccuracy)
		}
		fmt.Printf("%-6d %-8d %6d %5d%% %-9s %7s %7s %-17s\n",
			s.ID,
			s.PredictionID,
			s.Choice,
			s.Confidence,
			result,
			points,
			calib,
			s.SubmittedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Println()
	return nil
}

// renderSyncResults reports each replayed command and returns the commands
// that should stay queued (transient errors only).
func renderSyncResults(raw map[string]any, queue []syncq.Command) ([]syncq.Command, error) {
	payload, err := decodeInto[syncPayload](raw)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]predict.ReplayResult, len(payload.Results))
	for _, res := range payload.Results {
		byKey[res.IdempotencyKey] = res
	}

	var remaining []syncq.Command
	applied, dropped := 0, 0
	for _, q := range queue {
		res, ok := byKey[q.IdempotencyKey]
		if !ok {
			remaining = append(remaining, q)
			continue
		}
		switch res.Status {
		case "applied", "already_applied":
			applied++
		case "error":
			remaining = append(remaining, q)
			printWarn(fmt.Sprintf("Prediction %d replay failed: %s", q.PredictionID, res.Error))
		default:
			dropped++
			printWarn(fmt.Sprintf("Prediction %d dropped from queue: %s", q.PredictionID, res.Status))
		}
	}
	printSuccess(fmt.Sprintf("Sync complete: applied=%d dropped=%d remaining=%d", applied, dropped, len(remaining)))
	if remaining == nil {
		remaining = []syncq.Command{}
	}
	return remaining, nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%.1f%%", v)
	switch {
	case v >= 55:
		return success.Sprint(text)
	case v < 45 && v > 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
