package registry

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migration/*.sql
var migrationFiles embed.FS

// InitSchema creates the mounts table and its indexes. Every migration is
// idempotent and applied in file name order, so running it on an existing
// registry is a no-op.
func InitSchema(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationFiles, "migration/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		schema, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, string(schema)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}
