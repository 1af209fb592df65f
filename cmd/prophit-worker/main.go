package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prophit/internal/config"
	"prophit/internal/db"
	"prophit/internal/predict"
)

// The worker repairs predictions that committed their resolution but crashed
// before scoring finished. Each pass is idempotent, so overlapping runs or
// restarts never double-score.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.StartupEnsureSchema {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Error("schema bootstrap failed", "err", err)
			os.Exit(1)
		}
	}

	rank := predict.DefaultRankConfig()
	rank.MinVolume = cfg.RankMinVolume
	svc := predict.NewService(pool, logger, rank)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("PROPHIT_WORKER_RUN_ONCE")), "true")
	if runOnce {
		scored, err := svc.SweepUnscored(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "scored", scored)
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			scored, err := svc.SweepUnscored(ctx)
			if err != nil {
				logger.Error("sweep failed", "err", err)
				continue
			}
			if scored > 0 {
				logger.Info("sweep repaired submissions", "scored", scored)
			}
		}
	}
}
