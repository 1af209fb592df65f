package predict

import (
	"context"
)

const (
	TierRookie    = "rookie"
	TierBronze    = "bronze"
	TierSilver    = "silver"
	TierGold      = "gold"
	TierPlatinum  = "platinum"
	TierLegendary = "legendary"

	BadgeSharpshooter = "sharpshooter"
	BadgeOracleSlayer = "oracle_slayer"
	BadgeHotHand      = "hot_hand"
	BadgeIronVolume   = "iron_volume"
)

// RankConfig holds the deployment-tunable ranking thresholds. Tier cutoffs
// apply to accuracy rate; users below MinVolume scored predictions stay
// rookie and are excluded from ranked output.
type RankConfig struct {
	MinVolume            int
	LegendaryAccuracy    float64
	PlatinumAccuracy     float64
	GoldAccuracy         float64
	SilverAccuracy       float64
	SharpshooterAccuracy float64
	OracleSlayerBeats    int
	HotHandStreak        int
	IronVolumeCount      int
}

func DefaultRankConfig() RankConfig {
	return RankConfig{
		MinVolume:            5,
		LegendaryAccuracy:    0.85,
		PlatinumAccuracy:     0.75,
		GoldAccuracy:         0.65,
		SilverAccuracy:       0.55,
		SharpshooterAccuracy: 0.90,
		OracleSlayerBeats:    10,
		HotHandStreak:        10,
		IronVolumeCount:      50,
	}
}

func (c RankConfig) withDefaults() RankConfig {
	def := DefaultRankConfig()
	if c.MinVolume <= 0 {
		c.MinVolume = def.MinVolume
	}
	if c.LegendaryAccuracy <= 0 {
		c.LegendaryAccuracy = def.LegendaryAccuracy
	}
	if c.PlatinumAccuracy <= 0 {
		c.PlatinumAccuracy = def.PlatinumAccuracy
	}
	if c.GoldAccuracy <= 0 {
		c.GoldAccuracy = def.GoldAccuracy
	}
	if c.SilverAccuracy <= 0 {
		c.SilverAccuracy = def.SilverAccuracy
	}
	if c.SharpshooterAccuracy <= 0 {
		c.SharpshooterAccuracy = def.SharpshooterAccuracy
	}
	if c.OracleSlayerBeats <= 0 {
		c.OracleSlayerBeats = def.OracleSlayerBeats
	}
	if c.HotHandStreak <= 0 {
		c.HotHandStreak = def.HotHandStreak
	}
	if c.IronVolumeCount <= 0 {
		c.IronVolumeCount = def.IronVolumeCount
	}
	return c
}

// TierFor buckets a user by accuracy and volume.
func TierFor(st UserStats, cfg RankConfig) string {
	if st.TotalPredictions < cfg.MinVolume {
		return TierRookie
	}
	switch {
	case st.AccuracyRate >= cfg.LegendaryAccuracy:
		return TierLegendary
	case st.AccuracyRate >= cfg.PlatinumAccuracy:
		return TierPlatinum
	case st.AccuracyRate >= cfg.GoldAccuracy:
		return TierGold
	case st.AccuracyRate >= cfg.SilverAccuracy:
		return TierSilver
	default:
		return TierBronze
	}
}

// BadgesFor evaluates each badge predicate independently; a user may hold
// any subset.
func BadgesFor(st UserStats, cfg RankConfig) []string {
	badges := []string{}
	if st.TotalPredictions >= cfg.MinVolume && st.AccuracyRate >= cfg.SharpshooterAccuracy {
		badges = append(badges, BadgeSharpshooter)
	}
	if st.OracleBeats >= cfg.OracleSlayerBeats {
		badges = append(badges, BadgeOracleSlayer)
	}
	if st.BestStreak >= cfg.HotHandStreak {
		badges = append(badges, BadgeHotHand)
	}
	if st.TotalPredictions >= cfg.IronVolumeCount {
		badges = append(badges, BadgeIronVolume)
	}
	return badges
}

// Rank derives the ordered leaderboard for a scope from the current
// user_stats snapshot. The sort key ends with user_id so two identical
// stat lines still order deterministically, which keeps pagination stable.
// The read is not serialized against in-flight resolutions; staleness is
// bounded by the last completed aggregation.
func (s *Service) Rank(ctx context.Context, scope Scope, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT us.user_id, COALESCE(pr.username, us.user_id),
		       us.total_predictions, us.correct_predictions, us.accuracy_rate, us.total_points,
		       us.current_streak, us.best_streak, us.oracle_beats, us.average_confidence, us.updated_at
		FROM predict.user_stats us
		LEFT JOIN predict.profiles pr ON pr.user_id = us.user_id
		WHERE us.season = $1 AND us.week = $2 AND us.total_predictions >= $3
		ORDER BY us.total_points DESC, us.accuracy_rate DESC, us.total_predictions DESC, us.user_id ASC
		LIMIT $4
	`, scope.Season, scope.Week, s.rank.MinVolume, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var st UserStats
		var username string
		if err := rows.Scan(
			&st.UserID, &username,
			&st.TotalPredictions, &st.CorrectPredictions, &st.AccuracyRate, &st.TotalPoints,
			&st.CurrentStreak, &st.BestStreak, &st.OracleBeats, &st.AverageConfidence, &st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, LeaderboardEntry{
			Rank:             rank,
			UserID:           st.UserID,
			Username:         username,
			TotalPoints:      st.TotalPoints,
			AccuracyRate:     st.AccuracyRate,
			TotalPredictions: st.TotalPredictions,
			CurrentStreak:    st.CurrentStreak,
			BestStreak:       st.BestStreak,
			OracleBeats:      st.OracleBeats,
			Tier:             TierFor(st, s.rank),
			Badges:           BadgesFor(st, s.rank),
		})
		rank++
	}
	return out, rows.Err()
}

// StatsView decorates a raw aggregate row with its derived tier and badges.
func (s *Service) StatsView(st UserStats) (string, []string) {
	return TierFor(st, s.rank), BadgesFor(st, s.rank)
}
