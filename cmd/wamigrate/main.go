// Command wamigrate applies the conversation store's schema migrations
// to the configured PostgreSQL database and exits.
package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/healthconcierge/wa-concierge/pkg/config"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/database"
)

func main() {
	envPath := filepath.Join(".", ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file loaded from %s: %v", envPath, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := convstore.Migrate(ctx, db, cfg.Database.Database); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	log.Println("migrations applied")
}
