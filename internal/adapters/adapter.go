// Package adapters converts institution-specific statement rows into
// canonical transactions.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/google/uuid"
)

// RawRow is one source row keyed by column name.
type RawRow map[string]any

// Result is the outcome of normalizing a batch of rows.
type Result struct {
	Transactions []domain.Transaction
	// Skipped counts rows that failed to parse.
	Skipped int
	// Credits counts payment and refund rows that were dropped.
	Credits int
}

// Adapter normalizes rows from one institution.
type Adapter interface {
	Institution() domain.Institution
	Normalize(ctx context.Context, userID string, rows []RawRow) Result
}

var (
	dateColumns        = []string{"transaction date", "date", "trans date", "posting date", "post date"}
	descriptionColumns = []string{"description", "merchant", "payee", "details"}
	amountColumns      = []string{"amount", "transaction amount"}
)

// errMissingDescription is returned for rows with a blank description.
var errMissingDescription = errors.New("missing description")

// signAdapter implements the shared normalization logic; institutions differ
// only in which sign marks a purchase.
type signAdapter struct {
	institution     domain.Institution
	negativeIsDebit bool
	now             func() time.Time
}

// Chase returns the adapter for Chase exports, where purchases are negative.
func Chase() Adapter {
	return &signAdapter{institution: domain.InstitutionChase, negativeIsDebit: true, now: time.Now}
}

// Amex returns the adapter for American Express exports, where purchases are positive.
func Amex() Adapter {
	return &signAdapter{institution: domain.InstitutionAmex, negativeIsDebit: false, now: time.Now}
}

// CryptoCard returns the adapter for rows recovered from crypto-card PDF
// statements. Amounts there are printed positive for purchases.
func CryptoCard() Adapter {
	return &signAdapter{institution: domain.InstitutionCryptoCard, negativeIsDebit: false, now: time.Now}
}

// ForInstitution looks up the adapter for a known institution.
func ForInstitution(inst domain.Institution) (Adapter, error) {
	switch inst {
	case domain.InstitutionChase:
		return Chase(), nil
	case domain.InstitutionAmex:
		return Amex(), nil
	case domain.InstitutionCryptoCard:
		return CryptoCard(), nil
	}
	return nil, fmt.Errorf("unsupported institution %q", inst)
}

func (a *signAdapter) Institution() domain.Institution { return a.institution }

// Normalize converts rows, logging and skipping any row that fails to parse.
func (a *signAdapter) Normalize(ctx context.Context, userID string, rows []RawRow) Result {
	log := logger.FromContext(ctx)
	res := Result{Transactions: make([]domain.Transaction, 0, len(rows))}

	for i, row := range rows {
		tx, err := a.normalizeRow(userID, row)
		if err != nil {
			res.Skipped++
			log.Warn().
				Err(err).
				Str("institution", string(a.institution)).
				Int("row", i).
				Str("raw", rowSnippet(row)).
				Msg("Skipping unparseable row")
			continue
		}
		if tx == nil {
			res.Credits++
			continue
		}
		res.Transactions = append(res.Transactions, *tx)
	}

	log.Debug().
		Str("institution", string(a.institution)).
		Int("kept", len(res.Transactions)).
		Int("skipped", res.Skipped).
		Int("credits", res.Credits).
		Msg("Normalized rows")

	return res
}

// normalizeRow returns nil without error for credit rows.
func (a *signAdapter) normalizeRow(userID string, row RawRow) (*domain.Transaction, error) {
	rawDate, _ := lookup(row, dateColumns)
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, err
	}

	rawAmount, _ := lookup(row, amountColumns)
	value, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	rawDesc, _ := lookup(row, descriptionColumns)
	description := strings.TrimSpace(fmt.Sprint(nilToEmpty(rawDesc)))
	if description == "" {
		return nil, errMissingDescription
	}

	txType := a.classifySign(value)
	if txType == domain.TypeCredit {
		return nil, nil
	}

	rawData, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode raw row: %w", err)
	}

	amount := FormatAmount(value)
	return &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        date,
		Institution: a.institution,
		Description: description,
		Amount:      amount,
		Type:        txType,
		RawData:     rawData,
		DedupKey:    DedupKey(userID, a.institution, date.String(), description, amount, txType),
		CreatedAt:   a.now().UTC(),
	}, nil
}

func (a *signAdapter) classifySign(v float64) domain.TransactionType {
	if a.negativeIsDebit {
		if v < 0 {
			return domain.TypeDebit
		}
		return domain.TypeCredit
	}
	if v > 0 {
		return domain.TypeDebit
	}
	return domain.TypeCredit
}

// lookup finds the first alias present in row, matching column names
// case-insensitively. Aliases are tried in order.
func lookup(row RawRow, aliases []string) (any, bool) {
	index := make(map[string]string, len(row))
	for k := range row {
		index[strings.ToLower(strings.TrimSpace(k))] = k
	}
	for _, alias := range aliases {
		if k, ok := index[alias]; ok {
			return row[k], true
		}
	}
	return nil, false
}

func nilToEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func rowSnippet(row RawRow) string {
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprint(map[string]any(row))
	}
	return logger.Snippet(string(b), 200)
}
