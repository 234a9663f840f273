package notionsync

import (
	"context"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/jomei/notionapi"
)

// sourcePageSize is the number of rows read from the store per query.
const sourcePageSize = 1000

// SyncStats summarizes one sync run.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// SyncDeductions mirrors the user's deductible transactions into the Notion
// database. Pages are matched on the Dedup Key property, so reruns update
// pages in place instead of duplicating them. Pages of the same user whose
// key is no longer deductible are archived. Other users' pages are never
// touched.
func SyncDeductions(ctx context.Context, src TransactionSource, notion NotionService, databaseID, userID string, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Bool("dry_run", dryRun).Logger()
	var stats SyncStats

	txs, err := listDeductible(ctx, src, userID)
	if err != nil {
		return stats, fmt.Errorf("SyncDeductions: %w", err)
	}
	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved deductible transactions")

	pages, err := queryAllNotionPages(ctx, notion, databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncDeductions: %w", err)
	}

	existing := make(map[string]string)
	for _, page := range pages {
		if richTextValue(page, PropUserID) != userID {
			continue
		}
		if key := richTextValue(page, PropDedupKey); key != "" {
			existing[key] = string(page.ID)
		}
	}
	log.Info().Int("notion_page_count", len(existing)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(txs))
	for _, tx := range txs {
		wanted[tx.DedupKey] = true
		props := TransactionToProperties(tx)

		pageID, ok := existing[tx.DedupKey]
		switch {
		case dryRun && ok:
			log.Info().Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
			stats.Updated++
		case dryRun:
			log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
		case ok:
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
		default:
			page, err := notion.CreatePage(ctx, databaseID, props)
			if err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			existing[tx.DedupKey] = string(page.ID)
			stats.Created++
		}
	}

	for key, pageID := range existing {
		if wanted[key] {
			continue
		}
		if dryRun {
			log.Info().Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := notion.DeletePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("Deduction sync completed")
	return stats, nil
}

func listDeductible(ctx context.Context, src TransactionSource, userID string) ([]domain.Transaction, error) {
	var all []domain.Transaction
	for offset := 0; ; offset += sourcePageSize {
		page, err := src.ListTransactions(ctx, userID, postgres.ListFilter{
			ClassifiedOnly: true,
			DeductibleOnly: true,
			Limit:          sourcePageSize,
			Offset:         offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list deductible transactions: %w", err)
		}
		all = append(all, page...)
		if len(page) < sourcePageSize {
			return all, nil
		}
	}
}

func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
