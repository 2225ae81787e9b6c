package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/smokeshop-backend/internal/consumers"
	analyticsconsumer "github.com/angelmondragon/smokeshop-backend/internal/consumers/analytics"
	"github.com/angelmondragon/smokeshop-backend/internal/notifications"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/shipments"
	"github.com/angelmondragon/smokeshop-backend/pkg/bigquery"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/email"
	"github.com/angelmondragon/smokeshop-backend/pkg/instance"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
	"github.com/angelmondragon/smokeshop-backend/pkg/pubsub"
	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	bigqueryClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery client", err)
		}
	}()

	mailer, err := email.NewClient(cfg.Sendgrid)
	if err != nil {
		logg.Error(ctx, "failed to create sendgrid client", err)
		os.Exit(1)
	}
	shippoClient, err := shippo.NewClientFromConfig(cfg.Shippo)
	if err != nil {
		logg.Error(ctx, "failed to create shippo client", err)
		os.Exit(1)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		os.Exit(1)
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	notificationService, err := notifications.NewService(mailer, ordersRepo, cfg.App, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}
	notificationHandler, err := notifications.NewHandler(notificationService)
	if err != nil {
		logg.Error(ctx, "failed to create notification handler", err)
		os.Exit(1)
	}

	shipmentService, err := shipments.NewService(dbClient, shipments.NewRepository(gormDB), ordersRepo, shippoClient, outboxService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create shipment service", err)
		os.Exit(1)
	}
	fulfillmentHandler, err := shipments.NewFulfillmentHandler(shipmentService, notificationService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create fulfillment handler", err)
		os.Exit(1)
	}

	analyticsHandler, err := analyticsconsumer.NewHandler(bigqueryClient)
	if err != nil {
		logg.Error(ctx, "failed to create analytics handler", err)
		os.Exit(1)
	}

	fulfillment, err := consumers.New(shipments.FulfillmentConsumerName, pubsubClient.FulfillmentSubscription(), eventRegistry, manager,
		consumers.Chain{fulfillmentHandler, notificationHandler}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create fulfillment consumer", err)
		os.Exit(1)
	}
	notificationConsumer, err := consumers.New(notifications.ConsumerName, pubsubClient.NotificationSubscription(), eventRegistry, manager,
		notificationHandler, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notification consumer", err)
		os.Exit(1)
	}
	analyticsConsumer, err := consumers.New(analyticsconsumer.ConsumerName, pubsubClient.AnalyticsSubscription(), eventRegistry, manager,
		analyticsHandler, logg)
	if err != nil {
		logg.Error(ctx, "failed to create analytics consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		PubSub:    pubsubClient,
		BigQuery:  bigqueryClient,
		Consumers: []*consumers.Consumer{fulfillment, notificationConsumer, analyticsConsumer},
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
