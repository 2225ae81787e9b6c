package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/smokeshop-backend/pkg/migrate"
)

// runtime holds the database opener and goose entry points so commands can
// be exercised without Postgres.
type runtime struct {
	open      func(ctx context.Context) (*sql.DB, func(), error)
	run       func(ctx context.Context, db *sql.DB, dir, command string, args ...string) error
	toVersion func(ctx context.Context, db *sql.DB, dir, version string) error
}

func rootCmd(rt runtime) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the smoke shop database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "migrations directory; empty uses the migrations built into the binary")

	for _, command := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Print applied and pending migrations"},
	} {
		cmd.AddCommand(gooseCmd(rt, &dir, command.use, command.short))
	}
	cmd.AddCommand(toCmd(rt, &dir), createCmd(&dir), validateCmd(&dir))
	return cmd
}

func gooseCmd(rt runtime, dir *string, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, cleanup, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.run(cmd.Context(), sqlDB, *dir, command)
		},
	}
}

func toCmd(rt runtime, dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "to VERSION",
		Short: "Migrate up or down to a YYYYMMDDHHMMSS version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, cleanup, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.toVersion(cmd.Context(), sqlDB, *dir, args[0])
		},
	}
}

func createCmd(dir *string) *cobra.Command {
	var noTx bool
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Write an empty SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if *dir == "" {
				return fmt.Errorf("--dir is required for create")
			}
			path, err := migrate.CreateSQLMigration(*dir, args[0], migrate.CreateOptions{NoTransaction: noTx})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noTx, "no-tx", false, "run outside a transaction (CREATE INDEX CONCURRENTLY)")
	return cmd
}

func validateCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check migration filenames and goose markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if *dir == "" {
				err = migrate.ValidateFS(migrate.Embedded, migrate.EmbeddedDir)
			} else {
				err = migrate.ValidateDir(*dir)
			}
			if err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
			return nil
		},
	}
}
