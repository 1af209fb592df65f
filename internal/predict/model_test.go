package predict

import (
	"math"
	"testing"
)

func TestScoreSubmissionScenario(t *testing.T) {
	// Options ["Home","Away"], oracle picks Home (0) at confidence 70,
	// actual result is Away (1).
	const oracleChoice, actual = 0, 1

	a := ScoreSubmission(1, 80, oracleChoice, actual)
	if !a.IsCorrect {
		t.Fatalf("expected user A to be correct")
	}
	if a.PointsEarned != 10+8+15 {
		t.Fatalf("user A points = %d, want 33", a.PointsEarned)
	}
	if math.Abs(a.ConfidenceAccuracy-0.2) > 1e-9 {
		t.Fatalf("user A calibration = %f, want 0.2", a.ConfidenceAccuracy)
	}

	b := ScoreSubmission(0, 60, oracleChoice, actual)
	if b.IsCorrect {
		t.Fatalf("expected user B to be incorrect")
	}
	if b.PointsEarned != 0 {
		t.Fatalf("user B points = %d, want 0", b.PointsEarned)
	}
	if math.Abs(b.ConfidenceAccuracy-0.6) > 1e-9 {
		t.Fatalf("user B calibration = %f, want 0.6", b.ConfidenceAccuracy)
	}
}

func TestScoreSubmissionNoOracleBeatWhenOracleCorrect(t *testing.T) {
	out := ScoreSubmission(1, 100, 1, 1)
	if !out.IsCorrect {
		t.Fatalf("expected correct")
	}
	if out.PointsEarned != 10+10 {
		t.Fatalf("points = %d, want 20 (no oracle-beat bonus)", out.PointsEarned)
	}
}

func TestScoreSubmissionDeterministic(t *testing.T) {
	for choice := 0; choice < 3; choice++ {
		for conf := 0; conf <= 100; conf += 7 {
			first := ScoreSubmission(choice, conf, 2, 1)
			second := ScoreSubmission(choice, conf, 2, 1)
			if first != second {
				t.Fatalf("scoring not deterministic for choice=%d conf=%d: %+v vs %+v", choice, conf, first, second)
			}
			if first.PointsEarned < 0 {
				t.Fatalf("negative points for choice=%d conf=%d", choice, conf)
			}
		}
	}
}

func TestScoreSubmissionConfidenceBonusFloors(t *testing.T) {
	tests := []struct {
		confidence int
		want       int
	}{
		{confidence: 0, want: 10},
		{confidence: 9, want: 10},
		{confidence: 10, want: 11},
		{confidence: 55, want: 15},
		{confidence: 100, want: 20},
	}
	for _, tc := range tests {
		out := ScoreSubmission(0, tc.confidence, 0, 0)
		if out.PointsEarned != tc.want {
			t.Fatalf("confidence=%d points=%d want=%d", tc.confidence, out.PointsEarned, tc.want)
		}
	}
}

func TestValidateConfidence(t *testing.T) {
	for _, v := range []int{0, 1, 50, 100} {
		if err := ValidateConfidence(v); err != nil {
			t.Fatalf("expected confidence %d to be valid: %v", v, err)
		}
	}
	for _, v := range []int{-1, 101, 1000} {
		if err := ValidateConfidence(v); err == nil {
			t.Fatalf("expected confidence %d to fail", v)
		}
	}
}

func TestBeatOracle(t *testing.T) {
	if !BeatOracle(true, 0, 1) {
		t.Fatalf("correct pick against a wrong oracle should beat it")
	}
	if BeatOracle(true, 1, 1) {
		t.Fatalf("no beat when the oracle was also right")
	}
	if BeatOracle(false, 0, 1) {
		t.Fatalf("incorrect pick never beats the oracle")
	}
}
