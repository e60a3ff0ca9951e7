// Package app wires the services shared by the api-server and the workers.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
	"github.com/Hasnainmunshi/diagnostic-management/internal/documents"
	"github.com/Hasnainmunshi/diagnostic-management/internal/effects"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	"github.com/Hasnainmunshi/diagnostic-management/internal/notify"
	"github.com/Hasnainmunshi/diagnostic-management/internal/payment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/records"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

type App struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *metrics.Recorder

	Catalog      *catalog.Service
	Slots        *slots.Service
	Appointments *appointment.Service
	Payments     *payment.Service
	Records      *records.Service
}

// New connects Postgres and Redis, applies pending migrations and builds every service.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger zerolog.Logger) (*App, error) {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	logger.Info().Msg("connected to Postgres")

	applied, err := db.NewMigrator(pool, logger).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

	rdb, err := redisclient.NewClient(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	store, err := documents.NewStore(ctx, cfg.Storage)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("document store: %w", err)
	}

	var gateway payment.Gateway = payment.DisabledGateway{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, cfg.GatewayTimeout, nil)
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, payments are disabled")
	}

	rec := metrics.New(reg)
	mailer := notify.NewSMTPMailer(cfg.SMTP)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, logger.With().Str("component", "lock").Logger())
	apptRepo := appointment.NewPgRepository(pool)

	catalogSvc := catalog.NewService(catalog.NewPgRepository(pool), cfg.MaxSlots, logger.With().Str("component", "catalog").Logger())
	recordsSvc := records.NewService(
		records.NewPgRepository(pool),
		apptRepo,
		catalogSvc,
		documents.NewPDFRenderer("Diagnostic Center"),
		store,
		mailer,
		cfg,
		logger.With().Str("component", "records").Logger(),
		rec,
	)
	dispatcher := effects.NewDispatcher(recordsSvc, mailer, cfg, logger, rec)

	return &App{
		Postgres: pool,
		Redis:    rdb,
		Metrics:  rec,
		Catalog:  catalogSvc,
		Slots: slots.NewService(slots.NewPgStore(pool), catalogSvc, locker, cfg.Zone(),
			logger.With().Str("component", "slots").Logger()),
		Appointments: appointment.NewService(apptRepo, catalogSvc, locker, dispatcher, cfg,
			logger.With().Str("component", "appointments").Logger(), rec),
		Payments: payment.NewService(apptRepo, gateway, dispatcher, cfg,
			logger.With().Str("component", "payments").Logger(), rec),
		Records: recordsSvc,
	}, nil
}

func (a *App) Close(logger zerolog.Logger) {
	if err := a.Redis.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing redis")
	}
	a.Postgres.Close()
}
