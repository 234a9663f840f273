package pipeline

import (
	"context"

	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
)

// TransactionStore is the relational store used by ingestion and analysis.
type TransactionStore interface {
	// InsertTransactions inserts rows, ignoring dedup-key conflicts, and
	// returns the number actually inserted.
	InsertTransactions(ctx context.Context, txs []domain.Transaction) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	CountUnclassifiedDebits(ctx context.Context, userID string) (int, error)
	// ListUnclassifiedDebits returns up to limit rows in (date, id) order.
	ListUnclassifiedDebits(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	UpdateClassification(ctx context.Context, userID, transactionID string, c domain.Classification) error
	ResetClassifications(ctx context.Context, userID string) error
}

// Classifier classifies one batch of transactions.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error)
}

// Exporter receives classified rows after a completed analysis.
type Exporter interface {
	ExportClassified(ctx context.Context, userID string, txs []domain.Transaction) error
}

// ProfileGate resolves and validates business types.
type ProfileGate interface {
	Lookup(businessType string) (profiles.Profile, bool)
	IsCanonical(key string) bool
}
