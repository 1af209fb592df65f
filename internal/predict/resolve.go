package predict

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Resolve records the actual result for a prediction, scores every
// submission against it, and folds the resulting deltas into user
// statistics. The status transition commits first; scoring and aggregation
// run afterwards in their own transactions, so a crash in between leaves the
// prediction resolved-but-unscored, which RescoreUnscored (and the worker
// sweep) repair. Calling Resolve again returns ErrAlreadyResolved without
// re-scoring anything.
func (s *Service) Resolve(ctx context.Context, predictionID int64, actualResult int) (ResolveResult, error) {
	var out ResolveResult
	pred, err := s.ResolvePrediction(ctx, predictionID, actualResult)
	if err != nil {
		return out, err
	}
	out.Prediction = pred

	deltas, err := s.RescoreUnscored(ctx, predictionID)
	if err != nil {
		return out, fmt.Errorf("prediction %d resolved but scoring incomplete: %w", predictionID, err)
	}
	out.Deltas = deltas
	out.ScoredCount = len(deltas)

	if err := s.applyDeltas(ctx, deltas); err != nil {
		return out, fmt.Errorf("prediction %d scored but aggregation incomplete: %w", predictionID, err)
	}

	s.log.Info("prediction resolved",
		"prediction_id", predictionID,
		"actual_result", actualResult,
		"scored", out.ScoredCount,
	)
	return out, nil
}

// Rescore is the operator recovery entry point for one prediction. It
// scores whatever is still unscored, folds the resulting deltas into user
// statistics, and then recomputes any statistics rows that were already
// scored but never aggregated. Safe to call repeatedly; a clean prediction
// yields a zero result.
func (s *Service) Rescore(ctx context.Context, predictionID int64) (RescoreResult, error) {
	var out RescoreResult
	deltas, err := s.RescoreUnscored(ctx, predictionID)
	if err != nil {
		return out, err
	}
	out.ScoredCount = len(deltas)
	if err := s.applyDeltas(ctx, deltas); err != nil {
		return out, fmt.Errorf("prediction %d scored but aggregation incomplete: %w", predictionID, err)
	}
	repaired, err := s.RepairStaleStats(ctx)
	if err != nil {
		return out, err
	}
	out.RepairedStats = repaired
	return out, nil
}

// RescoreUnscored scores every submission of a resolved prediction whose
// derived fields are still unset. It is the crash-recovery path and is safe
// to re-run: already-scored rows are never touched. Scoring happens in
// chunks so a timeout commits completed chunks instead of losing everything.
func (s *Service) RescoreUnscored(ctx context.Context, predictionID int64) ([]ResolutionDelta, error) {
	pred, err := s.GetPrediction(ctx, predictionID)
	if err != nil {
		return nil, err
	}
	if pred.Status != StatusResolved || pred.ActualResult == nil {
		return nil, ErrNotResolved
	}
	actual := *pred.ActualResult

	var deltas []ResolutionDelta
	for {
		scored, err := s.scoreChunk(ctx, pred, actual)
		if err != nil {
			return deltas, err
		}
		if len(scored) == 0 {
			return deltas, nil
		}
		deltas = append(deltas, scored...)
		if len(scored) < ScoreChunkSize {
			return deltas, nil
		}
	}
}

func (s *Service) scoreChunk(ctx context.Context, pred Prediction, actual int) ([]ResolutionDelta, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, choice, confidence
		FROM predict.submissions
		WHERE prediction_id = $1 AND is_correct IS NULL
		ORDER BY id
		LIMIT $2
		FOR UPDATE
	`, pred.ID, ScoreChunkSize)
	if err != nil {
		return nil, err
	}
	type pending struct {
		id         int64
		userID     string
		choice     int
		confidence int
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.userID, &p.choice, &p.confidence); err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	deltas := make([]ResolutionDelta, 0, len(batch))
	for _, p := range batch {
		outcome := ScoreSubmission(p.choice, p.confidence, pred.OracleChoice, actual)
		if _, err := tx.Exec(ctx, `
			UPDATE predict.submissions
			SET is_correct = $1, points_earned = $2, confidence_accuracy = $3, scored_at = now()
			WHERE id = $4 AND is_correct IS NULL
		`, outcome.IsCorrect, outcome.PointsEarned, outcome.ConfidenceAccuracy, p.id); err != nil {
			return nil, err
		}
		deltas = append(deltas, ResolutionDelta{
			UserID:       p.userID,
			PredictionID: pred.ID,
			Season:       pred.Season,
			Week:         pred.Week,
			IsCorrect:    outcome.IsCorrect,
			PointsEarned: outcome.PointsEarned,
			Confidence:   p.confidence,
			BeatOracle:   BeatOracle(outcome.IsCorrect, pred.OracleChoice, actual),
		})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return deltas, nil
}

func (s *Service) applyDeltas(ctx context.Context, deltas []ResolutionDelta) error {
	for _, d := range deltas {
		if _, err := s.ApplyResolutionDelta(ctx, d); err != nil {
			return fmt.Errorf("apply delta user=%s prediction=%d: %w", d.UserID, d.PredictionID, err)
		}
	}
	return nil
}

// SweepUnscored finds resolved predictions that still carry unscored
// submissions and repairs them, then recomputes statistics rows that lag
// behind already-scored submissions. Together the two phases cover both
// crash windows of Resolve: resolved-but-unscored and
// scored-but-unaggregated. The worker runs this on a schedule; it is
// idempotent and cheap when there is nothing to do. Returns the number of
// repair actions taken.
func (s *Service) SweepUnscored(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT p.id
		FROM predict.predictions p
		JOIN predict.submissions sub ON sub.prediction_id = p.id
		WHERE p.status = 'resolved' AND sub.is_correct IS NULL
		ORDER BY p.id
	`)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		deltas, err := s.RescoreUnscored(ctx, id)
		if err != nil {
			return repaired, fmt.Errorf("rescore prediction %d: %w", id, err)
		}
		if err := s.applyDeltas(ctx, deltas); err != nil {
			return repaired, err
		}
		s.log.Info("recovered partially scored prediction", "prediction_id", id, "scored", len(deltas))
		repaired++
	}

	stale, err := s.RepairStaleStats(ctx)
	if err != nil {
		return repaired, err
	}
	if stale > 0 {
		s.log.Info("recomputed stale statistics rows", "scopes", stale)
		repaired += stale
	}
	return repaired, nil
}
