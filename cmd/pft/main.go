package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "prophit/internal/cli"
	"prophit/internal/config"
	"prophit/internal/syncq"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "pft",
		Short:        "Prophit forecasting league client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newPredictionsCmd(&apiBase),
		newSubmitCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newStatsCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Prophit account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			username, err := promptOptional("Username (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Signup(ctx, email, password, username)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `pft login`.")
				return nil
			}
			sess := cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
				Username:     session.User.Username(),
			}
			if err := sess.Save(); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Signup complete. Welcome, %s.", sess.Display()))
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Prophit",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			sess := cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
				Username:     session.User.Username(),
			}
			if err := sess.Save(); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Signed in as %s.", sess.Display()))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newPredictionsCmd(apiBase *string) *cobra.Command {
	predictions := &cobra.Command{
		Use:     "predictions",
		Short:   "Prediction board commands",
		Aliases: []string{"board"},
	}
	predictions.AddCommand(newPredictionsListCmd(apiBase))
	predictions.AddCommand(newPredictionsShowCmd(apiBase))
	return predictions
}

func newPredictionsListCmd(apiBase *string) *cobra.Command {
	var week int
	var category string
	cmd := &cobra.Command{
		Use:   "list [open|resolved]",
		Short: "List open predictions or resolved history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			view := "open"
			if len(args) > 0 {
				view = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if view != "open" && view != "resolved" {
				return fmt.Errorf("unknown view %q, expected open or resolved", view)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.ListPredictions(ctx, sess.AccessToken, view == "resolved", week, category)
			if err != nil {
				return err
			}
			return renderPredictionsList(out, view)
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "filter by league week")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func newPredictionsShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [prediction_id]",
		Short: "Inspect one prediction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			id, err := int64FromArgOrPrompt(args, 0, "Prediction ID")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.PredictionDetail(ctx, sess.AccessToken, id)
			if err != nil {
				return err
			}
			return renderPredictionDetail(out)
		},
	}
}

func newSubmitCmd(apiBase *string) *cobra.Command {
	var choice int
	var confidence int
	var rationale string
	cmd := &cobra.Command{
		Use:   "submit [prediction_id]",
		Short: "Submit a forecast against the oracle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			id, err := int64FromArgOrPrompt(args, 0, "Prediction ID")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)

			if !cmd.Flags().Changed("choice") {
				detail, err := client.PredictionDetail(ctx, sess.AccessToken, id)
				if err == nil {
					_ = renderPredictionDetail(detail)
				}
				v, err := promptInt64("Choice (option index)", 0)
				if err != nil {
					return err
				}
				choice = int(v)
			}
			if !cmd.Flags().Changed("confidence") {
				v, err := promptConfidence()
				if err != nil {
					return err
				}
				confidence = v
			}

			idem := uuid.NewString()
			out, err := client.Submit(ctx, sess.AccessToken, id, choice, confidence, rationale, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					PredictionID:   id,
					Choice:         choice,
					Confidence:     confidence,
					Rationale:      rationale,
					IdempotencyKey: idem,
				})
			}
			return renderSubmissionResult(out)
		},
	}
	cmd.Flags().IntVar(&choice, "choice", 0, "option index to back")
	cmd.Flags().IntVar(&confidence, "confidence", 50, "confidence weight 0-100")
	cmd.Flags().StringVar(&rationale, "rationale", "", "optional reasoning note")
	return cmd
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var week int
	var limit int
	var watch bool
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Season or weekly leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			client := newClient(apiBase)
			if watch {
				return runLeaderboardWatch(cmd.Context(), client, sess.AccessToken, week, limit)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Leaderboard(ctx, sess.AccessToken, week, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(out, week, sess.Username)
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "league week (0 = whole season)")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	cmd.Flags().BoolVar(&watch, "watch", false, "live-updating leaderboard view")
	return cmd
}

func newStatsCmd(apiBase *string) *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your scoring profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.MyStats(ctx, sess.AccessToken, week)
			if err != nil {
				return err
			}
			return renderStats(out, week)
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "league week (0 = whole season)")
	return cmd
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.MySubmissions(ctx, sess.AccessToken, limit)
			if err != nil {
				return err
			}
			return renderSubmissions(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "rows to show")
	return cmd
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			commands := make([]map[string]any, 0, len(queue))
			for _, q := range queue {
				commands = append(commands, map[string]any{
					"prediction_id":   q.PredictionID,
					"choice":          q.Choice,
					"confidence":      q.Confidence,
					"rationale":       q.Rationale,
					"idempotency_key": q.IdempotencyKey,
				})
			}

			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := client.SyncReplay(ctx, sess.AccessToken, commands)
			if err != nil {
				return err
			}
			remaining, err := renderSyncResults(out, queue)
			if err != nil {
				return err
			}
			return syncq.Save(remaining)
		},
	}
}

// Offline submissions land in the local queue and replay through the
// idempotent sync endpoint, so a retried command never double-submits.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if isAPIStructuredError(err) {
		return err
	}
	if qerr := syncq.Push(cmd); qerr != nil {
		return fmt.Errorf("request failed and queueing failed: %v (original: %w)", qerr, err)
	}
	printWarn(fmt.Sprintf("API unreachable, submission queued locally. Run `pft sync` later. (%v)", err))
	return nil
}

func isAPIStructuredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "api status")
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}
