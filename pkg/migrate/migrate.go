package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the migrations path relative to the repository root. Binaries
// built elsewhere fall back to the embedded copy.
const DefaultDir = "pkg/migrate/migrations"

// EmbeddedDir is the directory name inside Embedded.
const EmbeddedDir = "migrations"

//go:embed migrations/*.sql
var Embedded embed.FS

// Run executes a standard goose command that requires a DB connection. An
// empty dir runs the embedded migrations.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	dir, restore, err := prepare(dir)
	if err != nil {
		return err
	}
	defer restore()

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	dir, restore, err := prepare(dir)
	if err != nil {
		return err
	}
	defer restore()

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil

	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil

	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

func prepare(dir string) (string, func(), error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return "", nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if dir != "" {
		goose.SetBaseFS(nil)
		return dir, func() {}, nil
	}
	goose.SetBaseFS(Embedded)
	return EmbeddedDir, func() { goose.SetBaseFS(nil) }, nil
}
