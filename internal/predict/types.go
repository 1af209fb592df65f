package predict

import "time"

const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

type Prediction struct {
	ID               int64      `json:"id"`
	Season           int        `json:"season"`
	Week             int        `json:"week"`
	Category         string     `json:"category"`
	Options          []string   `json:"options"`
	OracleChoice     int        `json:"oracle_choice"`
	OracleConfidence int        `json:"oracle_confidence"`
	OracleRationale  string     `json:"oracle_rationale"`
	DataRefs         []string   `json:"data_refs,omitempty"`
	Status           string     `json:"status"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ActualResult     *int       `json:"actual_result,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ParticipantCount int        `json:"participant_count"`
	SubmissionCount  int        `json:"submission_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Submission struct {
	ID                 int64      `json:"id"`
	PredictionID       int64      `json:"prediction_id"`
	UserID             string     `json:"user_id"`
	Choice             int        `json:"choice"`
	Confidence         int        `json:"confidence"`
	Rationale          string     `json:"rationale,omitempty"`
	IsCorrect          *bool      `json:"is_correct,omitempty"`
	PointsEarned       *int       `json:"points_earned,omitempty"`
	ConfidenceAccuracy *float64   `json:"confidence_accuracy,omitempty"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	ScoredAt           *time.Time `json:"scored_at,omitempty"`
}

// UserStats is one scoring-scope row of per-user aggregates. Week 0 is the
// season-wide scope; weekly rows use the prediction's week number.
type UserStats struct {
	UserID             string    `json:"user_id"`
	Season             int       `json:"season"`
	Week               int       `json:"week"`
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	AccuracyRate       float64   `json:"accuracy_rate"`
	TotalPoints        int64     `json:"total_points"`
	CurrentStreak      int       `json:"current_streak"`
	BestStreak         int       `json:"best_streak"`
	OracleBeats        int       `json:"oracle_beats"`
	AverageConfidence  float64   `json:"average_confidence"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ResolutionDelta is one per-user statistics event emitted by the resolution
// engine after scoring a submission.
type ResolutionDelta struct {
	UserID       string `json:"user_id"`
	PredictionID int64  `json:"prediction_id"`
	Season       int    `json:"season"`
	Week         int    `json:"week"`
	IsCorrect    bool   `json:"is_correct"`
	PointsEarned int    `json:"points_earned"`
	Confidence   int    `json:"confidence"`
	BeatOracle   bool   `json:"beat_oracle"`
}

type LeaderboardEntry struct {
	Rank             int      `json:"rank"`
	UserID           string   `json:"user_id"`
	Username         string   `json:"username"`
	TotalPoints      int64    `json:"total_points"`
	AccuracyRate     float64  `json:"accuracy_rate"`
	TotalPredictions int      `json:"total_predictions"`
	CurrentStreak    int      `json:"current_streak"`
	BestStreak       int      `json:"best_streak"`
	OracleBeats      int      `json:"oracle_beats"`
	Tier             string   `json:"tier"`
	Badges           []string `json:"badges"`
}

// Scope selects predictions or aggregates by league slice.
type Scope struct {
	Season   int
	Week     int    // 0 = all weeks (season scope)
	Category string // "" = all categories
}

type CreatePredictionInput struct {
	Season           int
	Week             int
	Category         string
	Options          []string
	OracleChoice     int
	OracleConfidence int
	OracleRationale  string
	DataRefs         []string
	ExpiresAt        time.Time
}

type SubmitInput struct {
	PredictionID   int64
	UserID         string
	Choice         int
	Confidence     int
	Rationale      string
	IdempotencyKey string
}

type ResolveResult struct {
	Prediction  Prediction        `json:"prediction"`
	ScoredCount int               `json:"scored_count"`
	Deltas      []ResolutionDelta `json:"-"`
}

// RescoreResult reports what a recovery pass repaired: freshly scored
// submissions plus statistics rows an earlier crash left lagging behind
// already-scored submissions.
type RescoreResult struct {
	ScoredCount   int `json:"scored_count"`
	RepairedStats int `json:"repaired_stats"`
}
