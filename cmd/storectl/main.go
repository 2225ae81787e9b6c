package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/content"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/seed"
	"github.com/angelmondragon/smokeshop-backend/internal/sitemap"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(liveRuntime()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "storectl:", err)
		os.Exit(1)
	}
}

func liveRuntime() runtime {
	return runtime{
		seeder: func(ctx context.Context) (seeder, func(), error) {
			_, logg, dbClient, err := bootstrap(ctx)
			if err != nil {
				return nil, nil, err
			}
			conn := dbClient.DB()
			s, err := seed.NewSeeder(dbClient, products.NewRepository(conn), content.NewRepository(conn), logg)
			if err != nil {
				_ = dbClient.Close()
				return nil, nil, err
			}
			return s, closer(dbClient), nil
		},
		reconciler: func(ctx context.Context) (reconciler, func(), error) {
			cfg, logg, dbClient, err := bootstrap(ctx)
			if err != nil {
				return nil, nil, err
			}
			rec, err := buildReconciler(ctx, cfg, logg, dbClient)
			if err != nil {
				_ = dbClient.Close()
				return nil, nil, err
			}
			return rec, closer(dbClient), nil
		},
		sitemaps: func(ctx context.Context) (sitemapBuilder, func(), error) {
			cfg, _, dbClient, err := bootstrap(ctx)
			if err != nil {
				return nil, nil, err
			}
			conn := dbClient.DB()
			builder, err := sitemap.NewBuilder(products.NewRepository(conn), content.NewRepository(conn), cfg.App.BaseURL())
			if err != nil {
				_ = dbClient.Close()
				return nil, nil, err
			}
			return builder, closer(dbClient), nil
		},
	}
}

func bootstrap(ctx context.Context) (*config.Config, *logger.Logger, *db.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "storectl"

	logg := logger.New(logger.Options{
		ServiceName: "storectl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, logg, dbClient, nil
}

func buildReconciler(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*checkout.Reconciler, error) {
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("square client: %w", err)
	}
	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	settler, err := checkout.NewSettler(dbClient, ordersRepo, cart.NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), logg))
	if err != nil {
		return nil, err
	}
	return checkout.NewReconciler(ordersRepo, squareClient, settler, cfg.Checkout, logg)
}

func closer(client *db.Client) func() {
	return func() { _ = client.Close() }
}
