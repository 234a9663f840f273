// Package bigquery exports classified transactions to a BigQuery table for
// reporting.
package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
)

// ClassifiedTransactionRow is one row of the classified_transactions table.
type ClassifiedTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	DedupKey      string `bigquery:"dedup_key"`      // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Institution     string     `bigquery:"institution"`      // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC

	Category     bigquery.NullString `bigquery:"category"`      // NULLABLE
	IsDeductible bigquery.NullBool   `bigquery:"is_deductible"` // NULLABLE
	Reasoning    bigquery.NullString `bigquery:"reasoning"`     // NULLABLE

	RawData bigquery.NullJSON `bigquery:"raw_data"` // NULLABLE JSON

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// newClassifiedRow converts a stored transaction into an export row.
func newClassifiedRow(tx domain.Transaction, exportedAt time.Time) (*ClassifiedTransactionRow, error) {
	amount, ok := new(big.Rat).SetString(tx.Amount)
	if !ok {
		return nil, fmt.Errorf("transaction %s: invalid amount %q", tx.ID, tx.Amount)
	}

	row := &ClassifiedTransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		DedupKey:        tx.DedupKey,
		TransactionDate: tx.Date,
		Institution:     string(tx.Institution),
		Description:     tx.Description,
		Amount:          amount,
		ExportedTS:      exportedAt.UTC(),
	}
	if tx.Category != nil {
		row.Category = bigquery.NullString{StringVal: *tx.Category, Valid: true}
	}
	if tx.IsDeductible != nil {
		row.IsDeductible = bigquery.NullBool{Bool: *tx.IsDeductible, Valid: true}
	}
	if tx.Reasoning != nil {
		row.Reasoning = bigquery.NullString{StringVal: *tx.Reasoning, Valid: true}
	}
	if len(tx.RawData) > 0 && json.Valid(tx.RawData) {
		row.RawData = bigquery.NullJSON{JSONVal: string(tx.RawData), Valid: true}
	}
	return row, nil
}

// DeductionSummaryRow aggregates one category for a user.
type DeductionSummaryRow struct {
	Category        string   `bigquery:"category"`
	TransactionCnt  int64    `bigquery:"transaction_cnt"`
	TotalAmount     *big.Rat `bigquery:"total_amount"`
	DeductibleTotal *big.Rat `bigquery:"deductible_total"`
}

// CategoryTotal converts the row to the domain aggregate.
func (r DeductionSummaryRow) CategoryTotal() domain.CategoryTotal {
	return domain.CategoryTotal{
		Category:   r.Category,
		Count:      int(r.TransactionCnt),
		Total:      ratFloat(r.TotalAmount),
		Deductible: ratFloat(r.DeductibleTotal),
	}
}

func ratFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
