package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr                string
	DatabaseURL         string
	SupabaseURL         string
	SupabaseAnonKey     string
	AdminToken          string
	Season              int
	SweepEvery          time.Duration
	DiscordToken        string
	DiscordChannelID    string
	StartupEnsureSchema bool
	RankMinVolume       int
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("PROPHIT_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:                addr,
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey:     strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		AdminToken:          strings.TrimSpace(os.Getenv("PROPHIT_ADMIN_TOKEN")),
		Season:              envIntDefault("PROPHIT_SEASON", 1),
		SweepEvery:          envDurationDefault("PROPHIT_SWEEP_EVERY", 2*time.Minute),
		DiscordToken:        strings.TrimSpace(os.Getenv("PROPHIT_DISCORD_TOKEN")),
		DiscordChannelID:    strings.TrimSpace(os.Getenv("PROPHIT_DISCORD_CHANNEL_ID")),
		StartupEnsureSchema: envBoolDefault("PROPHIT_STARTUP_ENSURE_SCHEMA", true),
		RankMinVolume:       envIntDefault("PROPHIT_RANK_MIN_VOLUME", 5),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("PROPHIT_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("PFT_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
