package convstore

import (
	"context"
	"database/sql"
	"embed"

	"github.com/healthconcierge/wa-concierge/pkg/database"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending convstore schema migrations to db, then
// ensures the full-text-search index over message text exists.
func Migrate(ctx context.Context, db *sql.DB, dbName string) error {
	if err := database.Migrate(db, migrationsFS, "migrations", dbName); err != nil {
		return err
	}
	return database.CreateGINIndex(ctx, db, "idx_messages_content_gin", "messages", "content")
}
