package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsradar/backend/internal/config"
	"github.com/newsradar/backend/internal/export"
	"github.com/newsradar/backend/internal/logger"
)

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	writer := export.NewWriter(cfg.ArtifactDir, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.String("artifact_dir", cfg.ArtifactDir),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	// Run immediately on start
	runOnce(log, writer, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(log, writer, cfg)
		}
	}
}

func runOnce(log *slog.Logger, writer *export.Writer, cfg *config.Retention) {
	removed, err := writer.PruneOlderThan(cfg.MaxAge)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return
	}

	if removed > 0 {
		log.Info("retention run completed", slog.Int("removed", removed))
	} else {
		log.Debug("retention run completed, no stale artifacts found")
	}
}
