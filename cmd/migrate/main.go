package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(liveRuntime()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func liveRuntime() runtime {
	return runtime{
		open: func(ctx context.Context) (*sql.DB, func(), error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, fmt.Errorf("load config: %w", err)
			}
			logg := logger.New(logger.Options{
				ServiceName: "migrate",
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				WarnStack:   cfg.App.LogWarnStack,
				Output:      os.Stderr,
			})
			dbClient, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				return nil, nil, fmt.Errorf("connect database: %w", err)
			}
			sqlDB, err := dbClient.DB().DB()
			if err != nil {
				_ = dbClient.Close()
				return nil, nil, fmt.Errorf("sql database: %w", err)
			}
			logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "migrate ready")
			return sqlDB, func() { _ = dbClient.Close() }, nil
		},
		run:       migrate.Run,
		toVersion: migrate.MigrateToVersion,
	}
}
