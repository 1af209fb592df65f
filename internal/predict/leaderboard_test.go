package predict

import (
	"slices"
	"testing"
)

func TestTierFor(t *testing.T) {
	cfg := DefaultRankConfig()
	tests := []struct {
		total    int
		accuracy float64
		want     string
	}{
		{total: 0, accuracy: 0, want: TierRookie},
		{total: 4, accuracy: 1.0, want: TierRookie},
		{total: 5, accuracy: 0.50, want: TierBronze},
		{total: 10, accuracy: 0.55, want: TierSilver},
		{total: 10, accuracy: 0.65, want: TierGold},
		{total: 10, accuracy: 0.75, want: TierPlatinum},
		{total: 10, accuracy: 0.85, want: TierLegendary},
		{total: 100, accuracy: 0.849, want: TierPlatinum},
	}
	for _, tc := range tests {
		st := UserStats{TotalPredictions: tc.total, AccuracyRate: tc.accuracy}
		if got := TierFor(st, cfg); got != tc.want {
			t.Fatalf("total=%d accuracy=%.3f tier=%s want=%s", tc.total, tc.accuracy, got, tc.want)
		}
	}
}

func TestBadgesForIndependentPredicates(t *testing.T) {
	cfg := DefaultRankConfig()

	none := BadgesFor(UserStats{TotalPredictions: 3, AccuracyRate: 1.0}, cfg)
	if len(none) != 0 {
		t.Fatalf("under-volume user should hold no badges, got %v", none)
	}

	all := BadgesFor(UserStats{
		TotalPredictions: 60,
		AccuracyRate:     0.95,
		OracleBeats:      12,
		BestStreak:       11,
	}, cfg)
	for _, want := range []string{BadgeSharpshooter, BadgeOracleSlayer, BadgeHotHand, BadgeIronVolume} {
		if !slices.Contains(all, want) {
			t.Fatalf("expected badge %s in %v", want, all)
		}
	}

	one := BadgesFor(UserStats{TotalPredictions: 6, AccuracyRate: 0.5, BestStreak: 10}, cfg)
	if len(one) != 1 || one[0] != BadgeHotHand {
		t.Fatalf("expected only hot_hand, got %v", one)
	}
}

func TestRankConfigDefaultsFillZeroes(t *testing.T) {
	cfg := RankConfig{MinVolume: 3}.withDefaults()
	if cfg.MinVolume != 3 {
		t.Fatalf("explicit MinVolume overwritten: %d", cfg.MinVolume)
	}
	if cfg.LegendaryAccuracy != 0.85 || cfg.HotHandStreak != 10 {
		t.Fatalf("zero fields not defaulted: %+v", cfg)
	}
}
