package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndex creates a full-text-search GIN index on the given table and
// column, tolerating concurrent creation by another process instance.
func CreateGINIndex(ctx context.Context, db *sql.DB, indexName, table, column string) error {
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING gin(to_tsvector('english', coalesce(%s, '')))`,
		indexName, table, column,
	)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create GIN index %s: %w", indexName, err)
	}
	return nil
}
