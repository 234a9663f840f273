package pipeline_test

import (
	"context"
	"sort"
	"sync"

	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/filestore"
)

// memStore is an in-memory TransactionStore with dedup-key conflict ignore.
type memStore struct {
	mu      sync.Mutex
	rows    []domain.Transaction
	keys    map[string]bool
	deletes int
	resets  int
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]bool)}
}

func (s *memStore) InsertTransactions(ctx context.Context, txs []domain.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, tx := range txs {
		if s.keys[tx.DedupKey] {
			continue
		}
		s.keys[tx.DedupKey] = true
		s.rows = append(s.rows, tx)
		n++
	}
	return n, nil
}

func (s *memStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	kept := s.rows[:0]
	var n int64
	for _, tx := range s.rows {
		if tx.UserID == userID {
			delete(s.keys, tx.DedupKey)
			n++
			continue
		}
		kept = append(kept, tx)
	}
	s.rows = kept
	return n, nil
}

func (s *memStore) CountUnclassifiedDebits(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.rows {
		if tx.UserID == userID && tx.Type == domain.TypeDebit && !tx.Classified() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListUnclassifiedDebits(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range s.rows {
		if tx.UserID == userID && tx.Type == domain.TypeDebit && !tx.Classified() {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateClassification(ctx context.Context, userID, transactionID string, c domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == transactionID && s.rows[i].UserID == userID {
			category, deductible, reasoning := c.Category, c.IsDeductible, c.Reasoning
			s.rows[i].Category = &category
			s.rows[i].IsDeductible = &deductible
			s.rows[i].Reasoning = &reasoning
		}
	}
	return nil
}

func (s *memStore) ResetClassifications(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	for i := range s.rows {
		if s.rows[i].UserID == userID {
			s.rows[i].Category = nil
			s.rows[i].IsDeductible = nil
			s.rows[i].Reasoning = nil
		}
	}
	return nil
}

func (s *memStore) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.rows {
		if tx.UserID == userID {
			n++
		}
	}
	return n
}

// MockClassifier is a mock implementation of Classifier.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error)
}

func (m *MockClassifier) Classify(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
	return m.ClassifyFunc(ctx, req, txs)
}

// MockExporter is a mock implementation of Exporter.
type MockExporter struct {
	ExportClassifiedFunc func(ctx context.Context, userID string, txs []domain.Transaction) error
}

func (m *MockExporter) ExportClassified(ctx context.Context, userID string, txs []domain.Transaction) error {
	return m.ExportClassifiedFunc(ctx, userID, txs)
}

// countingFiles records which files were downloaded.
type countingFiles struct {
	filestore.Store
	mu         sync.Mutex
	downloaded []string
}

func (c *countingFiles) Download(ctx context.Context, token, fileID string) ([]byte, error) {
	c.mu.Lock()
	c.downloaded = append(c.downloaded, fileID)
	c.mu.Unlock()
	return c.Store.Download(ctx, token, fileID)
}

func deductibleEverything(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
	out := make([]classify.Result, len(txs))
	for i, tx := range txs {
		out[i] = classify.Result{
			TransactionID: tx.ID,
			Classification: domain.Classification{
				Category:     "Office Supplies",
				IsDeductible: true,
				Reasoning:    "business purchase",
				Source:       domain.SourceModel,
			},
		}
	}
	return out, nil
}
