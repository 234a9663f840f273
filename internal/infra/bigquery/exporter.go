package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	classifiedTable = "classified_transactions"
	// insertChunk keeps streaming inserts under the request size limit.
	insertChunk = 500
)

// Exporter writes classified transactions to BigQuery. It holds a shared
// client to avoid creating a new connection for each operation.
type Exporter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

// NewExporter creates an exporter for projectID.datasetID.
func NewExporter(ctx context.Context, projectID, datasetID string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return NewExporterWithClient(client, projectID, datasetID), nil
}

// NewExporterWithClient creates an exporter using the provided client.
func NewExporterWithClient(client *bigquery.Client, projectID, datasetID string) *Exporter {
	return &Exporter{client: client, projectID: projectID, datasetID: datasetID, now: time.Now}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnsureTable creates the export table from the row schema if it is missing.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(ClassifiedTransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	table := e.client.DatasetInProject(e.projectID, e.datasetID).Table(classifiedTable)
	err = table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "transaction_date",
		},
	})
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: create %s: %w", classifiedTable, err)
	}
	return nil
}

// ExportClassified streams txs into the classified_transactions table.
func (e *Exporter) ExportClassified(ctx context.Context, userID string, txs []domain.Transaction) error {
	rows, err := buildRows(userID, txs, e.now())
	if err != nil {
		return fmt.Errorf("ExportClassified: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	inserter := e.client.DatasetInProject(e.projectID, e.datasetID).Table(classifiedTable).Inserter()
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("ExportClassified: inserting rows: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().Str("user_id", userID).Int("rows", len(rows)).Msg("Exported classified transactions to BigQuery")
	return nil
}

// buildRows converts the user's classified rows. Rows of other users and
// unclassified rows are dropped.
func buildRows(userID string, txs []domain.Transaction, exportedAt time.Time) ([]*ClassifiedTransactionRow, error) {
	rows := make([]*ClassifiedTransactionRow, 0, len(txs))
	for _, tx := range txs {
		if tx.UserID != userID || !tx.Classified() {
			continue
		}
		row, err := newClassifiedRow(tx, exportedAt)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DeductionSummary returns per-category totals of the latest export for userID.
func (e *Exporter) DeductionSummary(ctx context.Context, userID string) ([]domain.CategoryTotal, error) {
	q := e.client.Query(summaryQuery(e.projectID, e.datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("DeductionSummary: query read: %w", err)
	}

	var totals []domain.CategoryTotal
	for {
		var r DeductionSummaryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DeductionSummary: iter next: %w", err)
		}
		totals = append(totals, r.CategoryTotal())
	}
	return totals, nil
}

// summaryQuery keeps only the most recent export of each transaction.
func summaryQuery(projectID, datasetID string) string {
	return fmt.Sprintf(`
		WITH latest AS (
			SELECT * EXCEPT(rn) FROM (
				SELECT *, ROW_NUMBER() OVER (PARTITION BY dedup_key ORDER BY exported_ts DESC) AS rn
				FROM `+"`%s.%s.%s`"+`
				WHERE user_id = @user_id
			)
			WHERE rn = 1
		)
		SELECT
			IFNULL(category, 'Uncategorized') AS category,
			COUNT(*) AS transaction_cnt,
			SUM(amount) AS total_amount,
			IFNULL(SUM(IF(is_deductible, amount, 0)), 0) AS deductible_total
		FROM latest
		GROUP BY category
		ORDER BY deductible_total DESC
	`, projectID, datasetID, classifiedTable)
}
