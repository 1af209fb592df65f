package predict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// checkAdmission gates one submission against the prediction's current
// state: the prediction must be open, the deadline unexpired (a submission
// at the exact deadline is late), and the choice a valid option index.
func checkAdmission(status string, expiresAt, now time.Time, choice, optionCount int) error {
	if status == StatusResolved || !now.Before(expiresAt) {
		return ErrPredictionClosed
	}
	if !validChoice(choice, optionCount) {
		return fmt.Errorf("%w: %d outside %d options", ErrInvalidChoice, choice, optionCount)
	}
	return nil
}

// Submit validates and persists one user forecast. Admission rules (open
// status, deadline, option range, confidence range, one submission per user)
// are all checked inside a single transaction that holds the prediction row
// lock, so a submission racing a resolution of the same prediction commits
// strictly before or strictly after it, never half-in.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Submission, error) {
	var out Submission
	if err := ValidateConfidence(in.Confidence); err != nil {
		return out, fmt.Errorf("%w: %d outside [%d,%d]", err, in.Confidence, MinConfidence, MaxConfidence)
	}
	in.Rationale = strings.TrimSpace(in.Rationale)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "submit"); err != nil {
		return out, err
	}

	var status string
	var expiresAt time.Time
	var optionCount int
	err = tx.QueryRow(ctx, `
		SELECT status, expires_at, jsonb_array_length(options)
		FROM predict.predictions
		WHERE id = $1
		FOR UPDATE
	`, in.PredictionID).Scan(&status, &expiresAt, &optionCount)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}
	if err := checkAdmission(status, expiresAt, time.Now(), in.Choice, optionCount); err != nil {
		return out, err
	}

	// The unique constraint is the authority on duplicates; a conflicting
	// insert affects zero rows rather than failing the transaction.
	err = tx.QueryRow(ctx, `
		INSERT INTO predict.submissions (prediction_id, user_id, choice, confidence, rationale)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (prediction_id, user_id) DO NOTHING
		RETURNING id, submitted_at
	`, in.PredictionID, in.UserID, in.Choice, in.Confidence, in.Rationale).Scan(&out.ID, &out.SubmittedAt)
	if err == pgx.ErrNoRows {
		return out, ErrDuplicateSubmission
	}
	if err != nil {
		return out, err
	}

	// One submission per user, so both counters advance together.
	if _, err := tx.Exec(ctx, `
		UPDATE predict.predictions
		SET participant_count = participant_count + 1,
		    submission_count = submission_count + 1
		WHERE id = $1
	`, in.PredictionID); err != nil {
		return out, err
	}

	if err := tx.Commit(ctx); err != nil {
		return out, err
	}

	out.PredictionID = in.PredictionID
	out.UserID = in.UserID
	out.Choice = in.Choice
	out.Confidence = in.Confidence
	out.Rationale = in.Rationale
	return out, nil
}

// ListUserSubmissions returns a user's submissions for a season, newest
// first, including scored fields once the owning predictions resolve.
func (s *Service) ListUserSubmissions(ctx context.Context, userID string, season, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.prediction_id, s.user_id, s.choice, s.confidence, s.rationale,
		       s.is_correct, s.points_earned, s.confidence_accuracy, s.submitted_at, s.scored_at
		FROM predict.submissions s
		JOIN predict.predictions p ON p.id = s.prediction_id
		WHERE s.user_id = $1 AND p.season = $2
		ORDER BY s.submitted_at DESC, s.id DESC
		LIMIT $3
	`, userID, season, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID, &sub.PredictionID, &sub.UserID, &sub.Choice, &sub.Confidence, &sub.Rationale,
			&sub.IsCorrect, &sub.PointsEarned, &sub.ConfidenceAccuracy, &sub.SubmittedAt, &sub.ScoredAt,
		); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
