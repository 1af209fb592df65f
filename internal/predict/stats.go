package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// scoredRecord is one scored submission in submission-time order, the unit
// the aggregates fold over.
type scoredRecord struct {
	isCorrect  bool
	points     int
	confidence int
	beatOracle bool
}

type aggregates struct {
	total             int
	correct           int
	accuracy          float64
	points            int64
	currentStreak     int
	bestStreak        int
	oracleBeats       int
	averageConfidence float64
}

// foldStats replays scored submissions ordered by submission time. Streaks
// depend on that order, not on the order resolutions happened to arrive in:
// two predictions resolving in reverse order still produce the same final
// streak because the fold always runs over the ordered history.
func foldStats(history []scoredRecord) aggregates {
	var agg aggregates
	confidenceSum := 0
	for _, r := range history {
		agg.total++
		confidenceSum += r.confidence
		agg.points += int64(r.points)
		if r.isCorrect {
			agg.correct++
			agg.currentStreak++
			if agg.currentStreak > agg.bestStreak {
				agg.bestStreak = agg.currentStreak
			}
			if r.beatOracle {
				agg.oracleBeats++
			}
		} else {
			agg.currentStreak = 0
		}
	}
	if agg.total > 0 {
		agg.accuracy = float64(agg.correct) / float64(agg.total)
		agg.averageConfidence = float64(confidenceSum) / float64(agg.total)
	}
	return agg
}

// ApplyResolutionDelta folds one resolution event into the user's season and
// weekly aggregates. The implementation recomputes both rows from the user's
// full scored history rather than incrementing counters, so applying the
// same delta twice, or applying deltas out of submission order, converges on
// the same result. Returns the season-scope row.
func (s *Service) ApplyResolutionDelta(ctx context.Context, delta ResolutionDelta) (UserStats, error) {
	stats, err := s.RecomputeUser(ctx, delta.UserID, delta.Season, 0)
	if err != nil {
		return stats, err
	}
	if delta.Week > 0 {
		if _, err := s.RecomputeUser(ctx, delta.UserID, delta.Season, delta.Week); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// RecomputeUser rebuilds one (user, season, week) statistics row from scored
// submissions. Week 0 covers the whole season. Runs serializable with retry
// so concurrent resolutions touching the same user cannot interleave.
func (s *Service) RecomputeUser(ctx context.Context, userID string, season, week int) (UserStats, error) {
	var out UserStats
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return out, err
		}
		err = func() error {
			defer tx.Rollback(ctx)

			history, err := loadScoredHistory(ctx, tx, userID, season, week)
			if err != nil {
				return err
			}
			agg := foldStats(history)

			err = tx.QueryRow(ctx, `
				INSERT INTO predict.user_stats
				    (user_id, season, week, total_predictions, correct_predictions, accuracy_rate,
				     total_points, current_streak, best_streak, oracle_beats, average_confidence, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
				ON CONFLICT (user_id, season, week) DO UPDATE SET
				    total_predictions = EXCLUDED.total_predictions,
				    correct_predictions = EXCLUDED.correct_predictions,
				    accuracy_rate = EXCLUDED.accuracy_rate,
				    total_points = EXCLUDED.total_points,
				    current_streak = EXCLUDED.current_streak,
				    best_streak = EXCLUDED.best_streak,
				    oracle_beats = EXCLUDED.oracle_beats,
				    average_confidence = EXCLUDED.average_confidence,
				    updated_at = now()
				RETURNING updated_at
			`, userID, season, week, agg.total, agg.correct, agg.accuracy,
				agg.points, agg.currentStreak, agg.bestStreak, agg.oracleBeats, agg.averageConfidence).Scan(&out.UpdatedAt)
			if err != nil {
				return err
			}

			out.UserID = userID
			out.Season = season
			out.Week = week
			out.TotalPredictions = agg.total
			out.CorrectPredictions = agg.correct
			out.AccuracyRate = agg.accuracy
			out.TotalPoints = agg.points
			out.CurrentStreak = agg.currentStreak
			out.BestStreak = agg.bestStreak
			out.OracleBeats = agg.oracleBeats
			out.AverageConfidence = agg.averageConfidence
			return tx.Commit(ctx)
		}()
		if err == nil {
			return out, nil
		}
		if !isSerializationError(err) {
			return out, err
		}
		if attempt == maxAttempts-1 {
			return out, ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return out, err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return out, ErrTxConflict
}

func loadScoredHistory(ctx context.Context, tx pgx.Tx, userID string, season, week int) ([]scoredRecord, error) {
	query := `
		SELECT s.is_correct, s.points_earned, s.confidence, p.oracle_choice, p.actual_result
		FROM predict.submissions s
		JOIN predict.predictions p ON p.id = s.prediction_id
		WHERE s.user_id = $1 AND p.season = $2 AND s.is_correct IS NOT NULL
	`
	args := []any{userID, season}
	if week > 0 {
		args = append(args, week)
		query += " AND p.week = $3"
	}
	query += " ORDER BY s.submitted_at, s.id"

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []scoredRecord
	for rows.Next() {
		var r scoredRecord
		var oracleChoice, actualResult int
		if err := rows.Scan(&r.isCorrect, &r.points, &r.confidence, &oracleChoice, &actualResult); err != nil {
			return nil, err
		}
		r.beatOracle = BeatOracle(r.isCorrect, oracleChoice, actualResult)
		history = append(history, r)
	}
	return history, rows.Err()
}

// statScope identifies one user_stats row.
type statScope struct {
	UserID string
	Season int
	Week   int
}

// expandScopes turns raw (user, season, week) rows into the full set of
// statistics rows to recompute: the season row (week 0) plus the weekly row
// for each entry, first-seen order, no repeats. A week-0 input contributes
// only the season row.
func expandScopes(raw []statScope) []statScope {
	seen := make(map[statScope]bool, len(raw)*2)
	out := make([]statScope, 0, len(raw)*2)
	for _, r := range raw {
		season := statScope{UserID: r.UserID, Season: r.Season, Week: 0}
		if !seen[season] {
			seen[season] = true
			out = append(out, season)
		}
		if r.Week > 0 && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// RepairStaleStats recomputes statistics rows that lag behind scored
// submissions. A crash between scoring and aggregation leaves submissions
// whose scored_at is newer than the owning user's stats row, or with no
// stats row at all; recomputing those scopes restores the invariant that a
// scored submission is reflected in user_stats. Returns the number of rows
// recomputed.
func (s *Service) RepairStaleStats(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT sub.user_id, p.season, p.week
		FROM predict.submissions sub
		JOIN predict.predictions p ON p.id = sub.prediction_id
		WHERE sub.scored_at IS NOT NULL
		  AND (
		    NOT EXISTS (
		      SELECT 1 FROM predict.user_stats us
		      WHERE us.user_id = sub.user_id AND us.season = p.season
		        AND us.week = 0 AND us.updated_at >= sub.scored_at
		    )
		    OR NOT EXISTS (
		      SELECT 1 FROM predict.user_stats us
		      WHERE us.user_id = sub.user_id AND us.season = p.season
		        AND us.week = p.week AND us.updated_at >= sub.scored_at
		    )
		  )
		ORDER BY sub.user_id, p.season, p.week
	`)
	if err != nil {
		return 0, err
	}
	var raw []statScope
	for rows.Next() {
		var sc statScope
		if err := rows.Scan(&sc.UserID, &sc.Season, &sc.Week); err != nil {
			rows.Close()
			return 0, err
		}
		raw = append(raw, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	scopes := expandScopes(raw)
	for _, sc := range scopes {
		if _, err := s.RecomputeUser(ctx, sc.UserID, sc.Season, sc.Week); err != nil {
			return 0, fmt.Errorf("recompute user=%s season=%d week=%d: %w", sc.UserID, sc.Season, sc.Week, err)
		}
	}
	return len(scopes), nil
}

// GetUserStats reads one aggregate row; a user with no scored submissions
// yet gets a zero-valued row rather than an error.
func (s *Service) GetUserStats(ctx context.Context, userID string, season, week int) (UserStats, error) {
	out := UserStats{UserID: userID, Season: season, Week: week}
	err := s.db.QueryRow(ctx, `
		SELECT total_predictions, correct_predictions, accuracy_rate, total_points,
		       current_streak, best_streak, oracle_beats, average_confidence, updated_at
		FROM predict.user_stats
		WHERE user_id = $1 AND season = $2 AND week = $3
	`, userID, season, week).Scan(
		&out.TotalPredictions, &out.CorrectPredictions, &out.AccuracyRate, &out.TotalPoints,
		&out.CurrentStreak, &out.BestStreak, &out.OracleBeats, &out.AverageConfidence, &out.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return UserStats{UserID: userID, Season: season, Week: week}, nil
	}
	return out, err
}
