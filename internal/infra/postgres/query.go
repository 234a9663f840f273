package postgres

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/chat"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultStatementTimeout bounds chat queries.
const DefaultStatementTimeout = 5 * time.Second

// ReadOnlyRunner executes guarded chat queries inside a read-only
// transaction with userID bound to $1.
type ReadOnlyRunner struct {
	db      DB
	timeout time.Duration
}

// NewReadOnlyRunner creates a runner on db.
func NewReadOnlyRunner(db DB) *ReadOnlyRunner {
	return &ReadOnlyRunner{db: db, timeout: DefaultStatementTimeout}
}

// Query runs sql and returns at most domain.MaxResultRows rows.
func (r *ReadOnlyRunner) Query(ctx context.Context, sql string, userID string) (*domain.ResultTable, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("Query: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", r.timeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("Query: statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	table := &domain.ResultTable{Columns: make([]string, len(fields)), Rows: []map[string]any{}}
	for i, f := range fields {
		table.Columns[i] = f.Name
	}

	for rows.Next() {
		if len(table.Rows) >= domain.MaxResultRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("Query: values: %w", err)
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[table.Columns[i]] = jsonValue(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// jsonValue converts driver values into JSON-friendly forms.
func jsonValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case *big.Int:
		return t.String()
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case []byte:
		return hex.EncodeToString(t)
	default:
		return v
	}
}

var _ chat.QueryRunner = (*ReadOnlyRunner)(nil)
