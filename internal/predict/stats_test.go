package predict

import (
	"math"
	"math/rand"
	"testing"
)

func outcomes(correct ...bool) []scoredRecord {
	out := make([]scoredRecord, len(correct))
	for i, c := range correct {
		points := 0
		if c {
			points = BasePoints
		}
		out[i] = scoredRecord{isCorrect: c, points: points, confidence: 50}
	}
	return out
}

func TestFoldStatsStreaks(t *testing.T) {
	agg := foldStats(outcomes(true, true, false, true))
	if agg.currentStreak != 1 {
		t.Fatalf("current streak = %d, want 1", agg.currentStreak)
	}
	if agg.bestStreak != 2 {
		t.Fatalf("best streak = %d, want 2", agg.bestStreak)
	}
	if agg.total != 4 || agg.correct != 3 {
		t.Fatalf("totals = %d/%d, want 3/4", agg.correct, agg.total)
	}
}

func TestFoldStatsStreakResets(t *testing.T) {
	agg := foldStats(outcomes(true, true, true, false))
	if agg.currentStreak != 0 {
		t.Fatalf("current streak = %d, want 0 after a miss", agg.currentStreak)
	}
	if agg.bestStreak != 3 {
		t.Fatalf("best streak = %d, want 3 (high-water mark survives reset)", agg.bestStreak)
	}
}

func TestFoldStatsEmptyHistory(t *testing.T) {
	agg := foldStats(nil)
	if agg.total != 0 || agg.accuracy != 0 || agg.averageConfidence != 0 {
		t.Fatalf("empty history should fold to zeroes, got %+v", agg)
	}
}

func TestFoldStatsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(40)
		history := make([]scoredRecord, n)
		for i := range history {
			correct := rng.Intn(2) == 0
			points := 0
			if correct {
				points = BasePoints + rng.Intn(10) + maybeBonus(rng)
			}
			history[i] = scoredRecord{
				isCorrect:  correct,
				points:     points,
				confidence: rng.Intn(101),
				beatOracle: correct && rng.Intn(3) == 0,
			}
		}
		agg := foldStats(history)
		if agg.correct > agg.total {
			t.Fatalf("correct %d > total %d", agg.correct, agg.total)
		}
		if agg.accuracy < 0 || agg.accuracy > 1 {
			t.Fatalf("accuracy %f outside [0,1]", agg.accuracy)
		}
		if agg.oracleBeats > agg.correct {
			t.Fatalf("oracle beats %d > correct %d", agg.oracleBeats, agg.correct)
		}
		if agg.currentStreak > agg.total {
			t.Fatalf("current streak %d > total %d", agg.currentStreak, agg.total)
		}
		if agg.bestStreak < agg.currentStreak {
			t.Fatalf("best streak %d < current streak %d", agg.bestStreak, agg.currentStreak)
		}
	}
}

func maybeBonus(rng *rand.Rand) int {
	if rng.Intn(2) == 0 {
		return OracleBeatBonus
	}
	return 0
}

// The aggregates come from a fold over submission-time-ordered history, so
// the order resolutions arrive in cannot change the result: every arrival
// order replays the same ordered prefix-plus-new-row history at the end.
func TestFoldStatsIndependentOfResolutionArrivalOrder(t *testing.T) {
	history := outcomes(true, true, false, true)

	reference := foldStats(history)
	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 50; trial++ {
		// Simulate resolutions arriving in a random order: after each
		// arrival the aggregator re-folds the scored subset in
		// submission-time order. Only the final state matters.
		arrival := rng.Perm(len(history))
		scored := make([]bool, len(history))
		var last aggregates
		for _, idx := range arrival {
			scored[idx] = true
			var visible []scoredRecord
			for i, r := range history {
				if scored[i] {
					visible = append(visible, r)
				}
			}
			last = foldStats(visible)
		}
		if last != reference {
			t.Fatalf("arrival order %v changed final aggregates: %+v vs %+v", arrival, last, reference)
		}
	}
	if reference.currentStreak != 1 || reference.bestStreak != 2 {
		t.Fatalf("reference streaks = %d/%d, want 1/2", reference.currentStreak, reference.bestStreak)
	}
}

func TestFoldStatsAverageConfidence(t *testing.T) {
	history := []scoredRecord{
		{isCorrect: true, points: 10, confidence: 80},
		{isCorrect: false, points: 0, confidence: 40},
	}
	agg := foldStats(history)
	if math.Abs(agg.averageConfidence-60) > 1e-9 {
		t.Fatalf("average confidence = %f, want 60", agg.averageConfidence)
	}
}

func TestExpandScopesIncludesSeasonRow(t *testing.T) {
	got := expandScopes([]statScope{{UserID: "u1", Season: 1, Week: 3}})
	want := []statScope{
		{UserID: "u1", Season: 1, Week: 0},
		{UserID: "u1", Season: 1, Week: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("scopes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scope[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandScopesDeduplicates(t *testing.T) {
	got := expandScopes([]statScope{
		{UserID: "u1", Season: 1, Week: 3},
		{UserID: "u1", Season: 1, Week: 3},
		{UserID: "u1", Season: 1, Week: 5},
		{UserID: "u2", Season: 1, Week: 3},
	})
	// u1 season + weeks 3 and 5, u2 season + week 3
	if len(got) != 5 {
		t.Fatalf("got %d scopes, want 5: %v", len(got), got)
	}
	seen := make(map[statScope]int)
	for _, sc := range got {
		seen[sc]++
		if seen[sc] > 1 {
			t.Fatalf("scope %v emitted twice", sc)
		}
	}
	if seen[statScope{UserID: "u1", Season: 1, Week: 0}] != 1 {
		t.Fatalf("missing season scope for u1: %v", got)
	}
	if seen[statScope{UserID: "u2", Season: 1, Week: 0}] != 1 {
		t.Fatalf("missing season scope for u2: %v", got)
	}
}

func TestExpandScopesWeekZeroInput(t *testing.T) {
	got := expandScopes([]statScope{{UserID: "u1", Season: 2, Week: 0}})
	if len(got) != 1 || got[0] != (statScope{UserID: "u1", Season: 2, Week: 0}) {
		t.Fatalf("scopes = %v, want just the season row", got)
	}
}
