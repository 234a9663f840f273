package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/config"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/notionsync"
)

func main() {
	cfg := config.Load()
	log := logger.Configure(cfg.LogFormat, cfg.LogLevel)

	userID := flag.String("user", "", "User ID whose deductions are synced (required)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("Error: DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()

	log.Info().
		Str("user_id", *userID).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	stats, err := notionsync.SyncDeductions(ctx,
		postgres.NewTransactionRepository(pool),
		notionsync.NewNotionClient(*notionToken),
		*notionDBID, *userID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Created: %d\nUpdated: %d\nArchived: %d\nFailed: %d\n", stats.Created, stats.Updated, stats.Deleted, stats.Failed)
}
