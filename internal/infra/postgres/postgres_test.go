package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// MockDB is a mock implementation of DB.
type MockDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTxFunc  func(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.ExecFunc(ctx, sql, args...)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.QueryFunc(ctx, sql, args...)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.QueryRowFunc(ctx, sql, args...)
}

func (m *MockDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return m.BeginTxFunc(ctx, opts)
}

func sampleTx(i int) domain.Transaction {
	return domain.Transaction{
		ID:          fmt.Sprintf("id-%d", i),
		UserID:      "u1",
		Date:        civil.Date{Year: 2025, Month: time.March, Day: 4},
		Institution: domain.InstitutionAmex,
		Description: "COFFEE",
		Amount:      "4.50",
		Type:        domain.TypeDebit,
		RawData:     []byte(`{"Amount":"4.50"}`),
		DedupKey:    fmt.Sprintf("key-%d", i),
	}
}

func TestBuildInsert(t *testing.T) {
	sql, args := buildInsert([]domain.Transaction{sampleTx(1), sampleTx(2)})

	if !strings.Contains(sql, "($11, $12, $13, $14, $15, $16, $17, $18, $19, $20)") {
		t.Errorf("second row placeholders missing:\n%s", sql)
	}
	if !strings.HasSuffix(sql, "ON CONFLICT (dedup_key) DO NOTHING") {
		t.Errorf("insert must ignore dedup conflicts:\n%s", sql)
	}
	if len(args) != 20 {
		t.Fatalf("len(args) = %d, want 20", len(args))
	}
	if args[2] != "2025-03-04" || args[5] != "4.50" || args[6] != "DEBIT" || args[8] != "key-1" {
		t.Errorf("args = %v", args[:10])
	}
	if _, ok := args[9].(time.Time); !ok {
		t.Errorf("created_at arg = %T", args[9])
	}
}

func TestInsertTransactions_Chunks(t *testing.T) {
	var calls int
	db := &MockDB{ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		calls++
		if len(args) > insertChunkSize*insertColumns {
			t.Errorf("chunk too large: %d args", len(args))
		}
		// Pretend one row of every chunk already existed.
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", len(args)/insertColumns-1)), nil
	}}
	repo := NewTransactionRepository(db)

	txs := make([]domain.Transaction, insertChunkSize+3)
	for i := range txs {
		txs[i] = sampleTx(i)
	}
	n, err := repo.InsertTransactions(context.Background(), txs)
	if err != nil {
		t.Fatalf("InsertTransactions: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if n != int64(len(txs)-2) {
		t.Errorf("inserted = %d, want %d", n, len(txs)-2)
	}
}

func TestInsertTransactions_Empty(t *testing.T) {
	db := &MockDB{ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		t.Error("no statement expected for empty input")
		return pgconn.CommandTag{}, nil
	}}
	n, err := NewTransactionRepository(db).InsertTransactions(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("got (%d, %v)", n, err)
	}
}

func TestJobStore_UpdateNotFound(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	db := &MockDB{ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotSQL, gotArgs = sql, args
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	s := NewJobStore(db)

	err := s.MarkFailed(context.Background(), "job-1", "boom")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
	if !strings.Contains(gotSQL, "state = 'failed', error = $2") || !strings.Contains(gotSQL, "WHERE id = $1") {
		t.Errorf("sql = %s", gotSQL)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "job-1" || gotArgs[1] != "boom" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("23505 should be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is not a unique violation")
	}
	if IsUniqueViolation(errors.New("duplicate")) {
		t.Error("plain errors are not unique violations")
	}
}

func TestJSONValue(t *testing.T) {
	var num pgtype.Numeric
	if err := num.Scan("12.34"); err != nil {
		t.Fatalf("numeric scan: %v", err)
	}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"numeric", num, 12.34},
		{"invalid numeric", pgtype.Numeric{}, nil},
		{"date", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "2025-01-02"},
		{"timestamp", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "2025-01-02T03:04:05Z"},
		{"uuid", [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}, "12345678-9abc-def0-1234-56789abcdef0"},
		{"bigint", big.NewInt(7), "7"},
		{"string", "x", "x"},
		{"bool", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jsonValue(tt.in); got != tt.want {
				t.Errorf("jsonValue(%v) = %v (%T), want %v", tt.in, got, got, tt.want)
			}
		})
	}
}

func TestSchema(t *testing.T) {
	for _, want := range []string{"dedup_key        TEXT NOT NULL UNIQUE", "CREATE TABLE IF NOT EXISTS jobs", "CREATE TABLE IF NOT EXISTS chat_messages"} {
		if !strings.Contains(Schema(), want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
