package domain

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// Institution identifies the card issuer a statement came from.
type Institution string

const (
	// InstitutionChase exports signed amounts where a negative value is a purchase.
	InstitutionChase Institution = "chase"
	// InstitutionAmex exports signed amounts where a positive value is a purchase.
	InstitutionAmex Institution = "amex"
	// InstitutionCryptoCard only ships PDF statements; positive values are purchases.
	InstitutionCryptoCard Institution = "crypto_card"
)

// Valid reports whether i is one of the supported issuers.
func (i Institution) Valid() bool {
	switch i {
	case InstitutionChase, InstitutionAmex, InstitutionCryptoCard:
		return true
	}
	return false
}

// TransactionType is the direction of money movement after sign normalization.
type TransactionType string

const (
	// TypeDebit is an expense. Only debits are persisted.
	TypeDebit TransactionType = "DEBIT"
	// TypeCredit is a payment or refund. Adapters drop these rows.
	TypeCredit TransactionType = "CREDIT"
)

// Transaction is the canonical, persisted record produced by an adapter.
// Category, IsDeductible and Reasoning are nil until a classification run
// writes them; they are reset together.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Date        civil.Date      `json:"date"`
	Institution Institution     `json:"institution"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Type        TransactionType `json:"transactionType"`

	Category     *string `json:"llmCategory"`
	IsDeductible *bool   `json:"isDeductible"`
	Reasoning    *string `json:"llmReasoning"`

	RawData   json.RawMessage `json:"rawData,omitempty"`
	DedupKey  string          `json:"dedupKey"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Classified reports whether a classification has been written.
func (t *Transaction) Classified() bool {
	return t.Category != nil && t.IsDeductible != nil
}

// ClassificationSource records how a classification was produced.
type ClassificationSource string

const (
	SourceModel    ClassificationSource = "model"
	SourceFallback ClassificationSource = "fallback"
	SourceRule     ClassificationSource = "rule"
)

// Classification is the tax-deductibility verdict for one transaction.
type Classification struct {
	Category     string               `json:"category"`
	IsDeductible bool                 `json:"is_deductible"`
	Reasoning    string               `json:"reasoning"`
	Source       ClassificationSource `json:"-"`
}

// CategoryTotal aggregates deductible spend for one category.
type CategoryTotal struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Total      float64 `json:"total"`
	Deductible float64 `json:"deductible"`
}
