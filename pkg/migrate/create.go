package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateOptions shape a new migration file.
type CreateOptions struct {
	// NoTransaction marks the file for statements Postgres refuses inside a
	// transaction, such as CREATE INDEX CONCURRENTLY on the catalog tables.
	NoTransaction bool
	// Now stamps the version. Zero means the current time.
	Now time.Time
}

// CreateSQLMigration writes <dir>/<version>_<name>.sql. The version is the
// timestamp, bumped past the newest file in dir so a migration authored on a
// skewed clock never sorts before one already merged.
func CreateSQLMigration(dir, name string, opts CreateOptions) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	version, err := nextVersion(dir, now.UTC())
	if err != nil {
		return "", err
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, safe))
	if err := os.WriteFile(fullpath, []byte(migrationTemplate(safe, opts.NoTransaction)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func nextVersion(dir string, now time.Time) (int64, error) {
	version, err := strconv.ParseInt(now.Format(versionLayout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("format version: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %q: %w", dir, err)
	}
	for _, entry := range entries {
		m := sqlFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		existing, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && existing >= version {
			version = existing + 1
		}
	}
	return version, nil
}

func migrationTemplate(name string, noTransaction bool) string {
	var b strings.Builder
	if noTransaction {
		b.WriteString("-- +goose NO TRANSACTION\n")
	}
	fmt.Fprintf(&b, "-- +goose Up\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n", name)
	fmt.Fprintf(&b, "-- +goose Down\n-- +goose StatementBegin\n-- rollback %s\n-- +goose StatementEnd\n", name)
	return b.String()
}
