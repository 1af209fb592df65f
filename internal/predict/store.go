package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Service struct {
	db   *pgxpool.Pool
	log  *slog.Logger
	rank RankConfig
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, rank RankConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:   db,
		log:  logger,
		rank: rank.withDefaults(),
	}
}

func (s *Service) CreatePrediction(ctx context.Context, in CreatePredictionInput) (Prediction, error) {
	var out Prediction
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = "general"
	}
	if len(in.Options) < 2 {
		return out, fmt.Errorf("%w: at least two options required", ErrInvalidSpec)
	}
	for i, opt := range in.Options {
		if strings.TrimSpace(opt) == "" {
			return out, fmt.Errorf("%w: option %d is empty", ErrInvalidSpec, i)
		}
	}
	if !validChoice(in.OracleChoice, len(in.Options)) {
		return out, fmt.Errorf("%w: oracle choice %d outside options", ErrInvalidSpec, in.OracleChoice)
	}
	if in.OracleConfidence < MinConfidence || in.OracleConfidence > MaxConfidence {
		return out, fmt.Errorf("%w: oracle confidence %d outside [%d,%d]", ErrInvalidSpec, in.OracleConfidence, MinConfidence, MaxConfidence)
	}
	if !in.ExpiresAt.After(time.Now()) {
		return out, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidSpec)
	}

	options, err := json.Marshal(in.Options)
	if err != nil {
		return out, err
	}
	if in.DataRefs == nil {
		in.DataRefs = []string{}
	}
	dataRefs, err := json.Marshal(in.DataRefs)
	if err != nil {
		return out, err
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO predict.predictions
		    (season, week, category, options, oracle_choice, oracle_confidence, oracle_rationale, data_refs, expires_at)
		VALUES
		    ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9)
		RETURNING id, created_at
	`, in.Season, in.Week, in.Category, string(options), in.OracleChoice, in.OracleConfidence,
		strings.TrimSpace(in.OracleRationale), string(dataRefs), in.ExpiresAt).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return out, err
	}

	out.Season = in.Season
	out.Week = in.Week
	out.Category = in.Category
	out.Options = in.Options
	out.OracleChoice = in.OracleChoice
	out.OracleConfidence = in.OracleConfidence
	out.OracleRationale = strings.TrimSpace(in.OracleRationale)
	out.DataRefs = in.DataRefs
	out.Status = StatusOpen
	out.ExpiresAt = in.ExpiresAt
	return out, nil
}

const predictionColumns = `
	id, season, week, category, options, oracle_choice, oracle_confidence,
	oracle_rationale, data_refs, status, expires_at, actual_result, resolved_at,
	participant_count, submission_count, created_at
`

func (s *Service) GetPrediction(ctx context.Context, id int64) (Prediction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+predictionColumns+`
		FROM predict.predictions
		WHERE id = $1
	`, id)
	out, err := scanPrediction(row)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	return out, err
}

// ListOpenPredictions returns predictions still accepting submissions in the
// given scope: open status and deadline not yet passed.
func (s *Service) ListOpenPredictions(ctx context.Context, scope Scope) ([]Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predict.predictions
		WHERE season = $1 AND status = 'open' AND expires_at > now()
	`
	args := []any{scope.Season}
	if scope.Week > 0 {
		args = append(args, scope.Week)
		query += fmt.Sprintf(" AND week = $%d", len(args))
	}
	if scope.Category != "" {
		args = append(args, strings.ToLower(scope.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY expires_at, id"
	return s.queryPredictions(ctx, query, args...)
}

// ListResolvedPredictions returns scored history for the given scope, newest
// resolution first.
func (s *Service) ListResolvedPredictions(ctx context.Context, scope Scope, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + predictionColumns + `
		FROM predict.predictions
		WHERE season = $1 AND status = 'resolved'
	`
	args := []any{scope.Season}
	if scope.Week > 0 {
		args = append(args, scope.Week)
		query += fmt.Sprintf(" AND week = $%d", len(args))
	}
	if scope.Category != "" {
		args = append(args, strings.ToLower(scope.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY resolved_at DESC, id DESC LIMIT $%d", len(args))
	return s.queryPredictions(ctx, query, args...)
}

// ResolvePrediction is the store-level status transition: it atomically moves
// an open prediction to resolved with the actual result. The row lock
// serializes this against concurrent submissions to the same prediction.
// A resolved prediction's content and result are never written again.
func (s *Service) ResolvePrediction(ctx context.Context, id int64, actualResult int) (Prediction, error) {
	var out Prediction
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+predictionColumns+`
		FROM predict.predictions
		WHERE id = $1
		FOR UPDATE
	`, id)
	out, err = scanPrediction(row)
	if err == pgx.ErrNoRows {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}
	if out.Status == StatusResolved {
		return out, ErrAlreadyResolved
	}
	if !validChoice(actualResult, len(out.Options)) {
		return out, fmt.Errorf("%w: %d outside %d options", ErrResultOutOfRange, actualResult, len(out.Options))
	}

	var resolvedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE predict.predictions
		SET status = 'resolved', actual_result = $1, resolved_at = now()
		WHERE id = $2 AND status = 'open'
		RETURNING resolved_at
	`, actualResult, id).Scan(&resolvedAt)
	if err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, err
	}

	out.Status = StatusResolved
	out.ActualResult = &actualResult
	out.ResolvedAt = &resolvedAt
	return out, nil
}

func (s *Service) queryPredictions(ctx context.Context, query string, args ...any) ([]Prediction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPrediction(row pgx.Row) (Prediction, error) {
	var p Prediction
	var options, dataRefs []byte
	err := row.Scan(
		&p.ID, &p.Season, &p.Week, &p.Category, &options, &p.OracleChoice, &p.OracleConfidence,
		&p.OracleRationale, &dataRefs, &p.Status, &p.ExpiresAt, &p.ActualResult, &p.ResolvedAt,
		&p.ParticipantCount, &p.SubmissionCount, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return p, fmt.Errorf("decode options for prediction %d: %w", p.ID, err)
	}
	if len(dataRefs) > 0 {
		if err := json.Unmarshal(dataRefs, &p.DataRefs); err != nil {
			return p, fmt.Errorf("decode data refs for prediction %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO predict.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
