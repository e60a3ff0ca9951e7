package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Hasnainmunshi/diagnostic-management/internal/api"
	"github.com/Hasnainmunshi/diagnostic-management/internal/app"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/logging"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg, "api-server")
	logger.Info().Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(rootCtx, cfg, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close(logger)

	router := api.NewRouter(api.RouterConfig{
		Catalog:      a.Catalog,
		Slots:        a.Slots,
		Appointments: a.Appointments,
		Payments:     a.Payments,
		Records:      a.Records,
		Verifier:     auth.NewVerifier(cfg.JWTSecret),
		TokenTTL:     cfg.TokenTTL,
		Postgres:     a.Postgres,
		Redis:        api.PingFunc(redisclient.Ping(a.Redis)),
		Metrics:      a.Metrics,
		MetricsPage:  metrics.Handler(reg),
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("shutting down api-server")
}
