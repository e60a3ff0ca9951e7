package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/app"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg, "expiry-worker")
	logger.Info().
		Dur("interval", cfg.WorkerInterval).
		Dur("pending_hold_ttl", cfg.PendingHoldTTL).
		Msg("expiry worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close(logger)

	// Run once at startup
	runOnce(rootCtx, a, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a, logger)
		}
	}
}

func runOnce(ctx context.Context, a *app.App, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	expired, err := a.Appointments.ExpirePendingHolds(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}

	pruned, err := a.Slots.PrunePast(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("slot prune error")
		return
	}

	logger.Info().
		Int("expired", expired).
		Int64("pruned_slots", pruned).
		Dur("took", time.Since(start)).
		Msg("expiry run complete")
}
