package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/jackc/pgx/v5"
)

// insertChunkSize keeps multi-row inserts well under the 65535 bind
// parameter limit.
const insertChunkSize = 500

const insertColumns = 10

const transactionColumns = `id, user_id, date, institution, description, amount::text, transaction_type,
	llm_category, is_deductible, llm_reasoning, raw_data, dedup_key, created_at`

// TransactionRepository stores canonical transactions.
type TransactionRepository struct {
	db DB
}

// NewTransactionRepository creates a repository on db.
func NewTransactionRepository(db DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListFilter narrows ListTransactions.
type ListFilter struct {
	ClassifiedOnly bool
	DeductibleOnly bool
	Limit          int
	Offset         int
}

// InsertTransactions inserts txs, ignoring rows whose dedup key already
// exists, and returns the number of rows actually inserted.
func (r *TransactionRepository) InsertTransactions(ctx context.Context, txs []domain.Transaction) (int64, error) {
	var inserted int64
	for start := 0; start < len(txs); start += insertChunkSize {
		end := min(start+insertChunkSize, len(txs))
		sql, args := buildInsert(txs[start:end])
		tag, err := r.db.Exec(ctx, sql, args...)
		if err != nil {
			return inserted, fmt.Errorf("InsertTransactions: rows %d-%d: %w", start, end, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func buildInsert(txs []domain.Transaction) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO transactions
	(id, user_id, date, institution, description, amount, transaction_type, raw_data, dedup_key, created_at)
VALUES `)

	args := make([]any, 0, len(txs)*insertColumns)
	now := time.Now().UTC()
	for i, tx := range txs {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * insertColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10)

		created := tx.CreatedAt
		if created.IsZero() {
			created = now
		}
		var raw any
		if len(tx.RawData) > 0 {
			raw = string(tx.RawData)
		}
		args = append(args,
			tx.ID, tx.UserID, tx.Date.String(), string(tx.Institution), tx.Description,
			tx.Amount, string(tx.Type), raw, tx.DedupKey, created)
	}
	b.WriteString(" ON CONFLICT (dedup_key) DO NOTHING")
	return b.String(), args
}

// DeleteByUser removes every transaction owned by userID.
func (r *TransactionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("DeleteByUser: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByUser returns the number of transactions owned by userID.
func (r *TransactionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountByUser: %w", err)
	}
	return n, nil
}

// CountUnclassifiedDebits returns how many DEBIT rows still need a category.
func (r *TransactionRepository) CountUnclassifiedDebits(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM transactions
		WHERE user_id = $1 AND transaction_type = 'DEBIT' AND llm_category IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountUnclassifiedDebits: %w", err)
	}
	return n, nil
}

// ListUnclassifiedDebits returns the next limit unclassified DEBIT rows in
// (date, id) order.
func (r *TransactionRepository) ListUnclassifiedDebits(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1 AND transaction_type = 'DEBIT' AND llm_category IS NULL
		ORDER BY date, id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnclassifiedDebits: query: %w", err)
	}
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListUnclassifiedDebits: %w", err)
	}
	return txs, nil
}

// UpdateClassification writes a classification for one transaction.
func (r *TransactionRepository) UpdateClassification(ctx context.Context, userID, transactionID string, c domain.Classification) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET llm_category = $3, is_deductible = $4, llm_reasoning = $5
		WHERE user_id = $1 AND id = $2`,
		userID, transactionID, c.Category, c.IsDeductible, c.Reasoning)
	if err != nil {
		return fmt.Errorf("UpdateClassification: %s: %w", transactionID, err)
	}
	return nil
}

// ResetClassifications clears category, deductibility and reasoning together.
func (r *TransactionRepository) ResetClassifications(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET llm_category = NULL, is_deductible = NULL, llm_reasoning = NULL
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ResetClassifications: %w", err)
	}
	return nil
}

// ListTransactions returns the user's transactions in (date, id) order.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID string, f ListFilter) ([]domain.Transaction, error) {
	var where strings.Builder
	where.WriteString("user_id = $1")
	if f.ClassifiedOnly {
		where.WriteString(" AND llm_category IS NOT NULL")
	}
	if f.DeductibleOnly {
		where.WriteString(" AND is_deductible")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+where.String()+`
		ORDER BY date, id
		LIMIT $2 OFFSET $3`, userID, limit, max(f.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// DeductionTotals aggregates classified spend per category.
func (r *TransactionRepository) DeductionTotals(ctx context.Context, userID string) ([]domain.CategoryTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT llm_category,
		       count(*),
		       COALESCE(sum(amount), 0)::float8,
		       COALESCE(sum(amount) FILTER (WHERE is_deductible), 0)::float8
		FROM transactions
		WHERE user_id = $1 AND llm_category IS NOT NULL
		GROUP BY llm_category
		ORDER BY 4 DESC, 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("DeductionTotals: query: %w", err)
	}
	defer rows.Close()

	var totals []domain.CategoryTotal
	for rows.Next() {
		var t domain.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Count, &t.Total, &t.Deductible); err != nil {
			return nil, fmt.Errorf("DeductionTotals: scan: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DeductionTotals: rows: %w", err)
	}
	return totals, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx          domain.Transaction
			date        time.Time
			institution string
			txType      string
			raw         []byte
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &date, &institution, &tx.Description, &tx.Amount, &txType,
			&tx.Category, &tx.IsDeductible, &tx.Reasoning, &raw, &tx.DedupKey, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Date = civil.DateOf(date)
		tx.Institution = domain.Institution(institution)
		tx.Type = domain.TransactionType(txType)
		if len(raw) > 0 {
			tx.RawData = json.RawMessage(raw)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
