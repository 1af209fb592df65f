package predict

import (
	"errors"
	"math"
)

const (
	MinConfidence = 0
	MaxConfidence = 100

	BasePoints      = 10
	OracleBeatBonus = 15

	// Submissions scored per transaction during resolution. A timeout
	// mid-batch leaves earlier chunks committed and later ones unscored,
	// which the rescore sweep picks up.
	ScoreChunkSize = 200
)

var (
	ErrNotFound             = errors.New("prediction not found")
	ErrInvalidSpec          = errors.New("invalid prediction spec")
	ErrInvalidChoice        = errors.New("choice index out of range")
	ErrInvalidConfidence    = errors.New("confidence out of range")
	ErrPredictionClosed     = errors.New("prediction closed")
	ErrDuplicateSubmission  = errors.New("submission already exists for this prediction")
	ErrAlreadyResolved      = errors.New("prediction already resolved")
	ErrNotResolved          = errors.New("prediction not resolved")
	ErrResultOutOfRange     = errors.New("actual result index out of range")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("storage conflict, retry the request")
)

// Outcome is the scored result of a single submission. The scoring formula
// is a pure function of the submission and the resolved prediction, so
// re-scoring stored data always reproduces the stored values.
type Outcome struct {
	IsCorrect          bool
	PointsEarned       int
	ConfidenceAccuracy float64
}

// ScoreSubmission computes points for one submission against the actual
// result: 10 base points for a correct pick, plus one bonus point per ten
// points of stated confidence, plus a flat bonus for being right when the
// oracle was wrong. Incorrect picks score zero.
func ScoreSubmission(choice, confidence, oracleChoice, actualResult int) Outcome {
	correct := choice == actualResult
	points := 0
	if correct {
		points = BasePoints + confidence/10
		if oracleChoice != actualResult {
			points += OracleBeatBonus
		}
	}
	realized := 0.0
	if correct {
		realized = 1.0
	}
	return Outcome{
		IsCorrect:          correct,
		PointsEarned:       points,
		ConfidenceAccuracy: math.Abs(float64(confidence)/100.0 - realized),
	}
}

// BeatOracle reports whether a correct submission counts as an oracle beat.
func BeatOracle(isCorrect bool, oracleChoice, actualResult int) bool {
	return isCorrect && oracleChoice != actualResult
}

func ValidateConfidence(confidence int) error {
	if confidence < MinConfidence || confidence > MaxConfidence {
		return ErrInvalidConfidence
	}
	return nil
}

func validChoice(choice, optionCount int) bool {
	return choice >= 0 && choice < optionCount
}
