package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/cron"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/migrate"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

const lockKeyFormat = "ss:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)

	settler, err := checkout.NewSettler(dbClient, ordersRepo, cartRepo, outbox.NewService(outboxRepo, logg))
	if err != nil {
		logg.Error(context.Background(), "failed to create payment settler", err)
		os.Exit(1)
	}
	reconciler, err := checkout.NewReconciler(ordersRepo, squareClient, settler, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewPaymentReconciliationJob(logg, reconciler)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation job", err)
		os.Exit(1)
	}
	cartCleanupJob, err := cron.NewGuestCartCleanupJob(logg, cartRepo, cfg.Cron.GuestCartRetention)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart cleanup job", err)
		os.Exit(1)
	}
	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reconcileJob)
	registry.Register(cartCleanupJob, cfg.Cron.GuestCartCleanupEvery)
	registry.Register(outboxRetentionJob, cfg.Cron.OutboxRetentionEvery)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
