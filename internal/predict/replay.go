package predict

import (
	"context"
	"errors"
)

// ReplayCommand is one queued offline submission shipped up by the CLI once
// connectivity returns.
type ReplayCommand struct {
	PredictionID   int64  `json:"prediction_id"`
	Choice         int    `json:"choice"`
	Confidence     int    `json:"confidence"`
	Rationale      string `json:"rationale,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ReplayResult struct {
	PredictionID   int64       `json:"prediction_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	Status         string      `json:"status"`
	Error          string      `json:"error,omitempty"`
	Submission     *Submission `json:"submission,omitempty"`
}

// ReplaySubmissions applies queued commands in order. Duplicates and closed
// predictions are reported per command instead of aborting the batch, so a
// queue that was partially applied before a crash replays cleanly.
func (s *Service) ReplaySubmissions(ctx context.Context, userID string, commands []ReplayCommand) []ReplayResult {
	results := make([]ReplayResult, 0, len(commands))
	for _, cmd := range commands {
		res := ReplayResult{PredictionID: cmd.PredictionID, IdempotencyKey: cmd.IdempotencyKey}
		sub, err := s.Submit(ctx, SubmitInput{
			PredictionID:   cmd.PredictionID,
			UserID:         userID,
			Choice:         cmd.Choice,
			Confidence:     cmd.Confidence,
			Rationale:      cmd.Rationale,
			IdempotencyKey: cmd.IdempotencyKey,
		})
		switch {
		case err == nil:
			res.Status = "applied"
			res.Submission = &sub
		case errors.Is(err, ErrDuplicateIdempotency), errors.Is(err, ErrDuplicateSubmission):
			res.Status = "already_applied"
		case errors.Is(err, ErrPredictionClosed):
			res.Status = "closed"
		case errors.Is(err, ErrNotFound):
			res.Status = "not_found"
		default:
			res.Status = "error"
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}
