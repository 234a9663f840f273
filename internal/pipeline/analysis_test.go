package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/jobs/inmemory"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/pipeline"
)

func seed(store *memStore, userID string, n int) {
	var txs []domain.Transaction
	for i := 0; i < n; i++ {
		txs = append(txs, domain.Transaction{
			ID:          fmt.Sprintf("tx-%02d", i),
			UserID:      userID,
			Date:        civil.Date{Year: 2025, Month: 1, Day: 1 + i},
			Institution: domain.InstitutionChase,
			Description: fmt.Sprintf("MERCHANT %d", i),
			Amount:      "10.00",
			Type:        domain.TypeDebit,
			DedupKey:    fmt.Sprintf("%s-%d", userID, i),
		})
	}
	_, _ = store.InsertTransactions(context.Background(), txs)
}

func TestAnalysisWorker_ClassifiesInBatches(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(store, "u1", 7)
	jobStore := inmemory.NewStore()
	job := newJob(t, jobStore, jobs.KindAnalysis)

	var (
		mu    sync.Mutex
		sizes []int
	)
	classifier := &MockClassifier{ClassifyFunc: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
		mu.Lock()
		sizes = append(sizes, len(txs))
		mu.Unlock()
		if req.BusinessType != "freelance_software" {
			t.Errorf("business type = %q", req.BusinessType)
		}
		return deductibleEverything(ctx, req, txs)
	}}

	var exported []domain.Transaction
	exporter := &MockExporter{ExportClassifiedFunc: func(ctx context.Context, userID string, txs []domain.Transaction) error {
		exported = txs
		return nil
	}}

	worker := pipeline.NewAnalysisWorker(store, jobStore, classifier, exporter, 3)
	err := worker.Run(ctx, job.ID, "u1", classify.Request{BusinessType: "freelance_software"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := []int{3, 3, 1}; fmt.Sprint(sizes) != fmt.Sprint(want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}
	got, _ := jobStore.GetJob(ctx, job.ID)
	if got.State != jobs.StateCompleted || got.Processed != 7 || got.Total != 7 {
		t.Errorf("job = %+v", got)
	}
	if n, _ := store.CountUnclassifiedDebits(ctx, "u1"); n != 0 {
		t.Errorf("%d rows left unclassified", n)
	}
	if len(exported) != 7 {
		t.Fatalf("exported %d rows, want 7", len(exported))
	}
	if !exported[0].Classified() {
		t.Error("exported rows should carry their classification")
	}
}

func TestAnalysisWorker_ExportFailureIsLoggedOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))
	store := newMemStore()
	seed(store, "u1", 2)
	jobStore := inmemory.NewStore()
	job := newJob(t, jobStore, jobs.KindAnalysis)

	exporter := &MockExporter{ExportClassifiedFunc: func(ctx context.Context, userID string, txs []domain.Transaction) error {
		return errors.New("bigquery down")
	}}
	worker := pipeline.NewAnalysisWorker(store, jobStore, &MockClassifier{ClassifyFunc: deductibleEverything}, exporter, 10)

	if err := worker.Run(ctx, job.ID, "u1", classify.Request{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := jobStore.GetJob(ctx, job.ID)
	if got.State != jobs.StateCompleted {
		t.Errorf("state = %s, want completed", got.State)
	}
	if !strings.Contains(buf.String(), "bigquery down") {
		t.Errorf("export error not logged: %s", buf.String())
	}
}

func TestAnalysisWorker_FailureUsesPublicMessage(t *testing.T) {
	tests := []struct {
		name     string
		classify func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error)
	}{
		{
			name: "classifier error",
			classify: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
				return nil, errors.New("llm fatal (403): permission denied")
			},
		},
		{
			name: "short batch",
			classify: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
				return nil, nil
			},
		},
		{
			name: "panic",
			classify: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
				panic("nil map")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))
			store := newMemStore()
			seed(store, "u1", 2)
			jobStore := inmemory.NewStore()
			job := newJob(t, jobStore, jobs.KindAnalysis)

			worker := pipeline.NewAnalysisWorker(store, jobStore, &MockClassifier{ClassifyFunc: tt.classify}, nil, 10)
			if err := worker.Run(ctx, job.ID, "u1", classify.Request{}); err == nil {
				t.Fatal("expected error")
			}

			got, _ := jobStore.GetJob(ctx, job.ID)
			if got.State != jobs.StateFailed || got.Error == nil || *got.Error != pipeline.PublicAnalysisError {
				t.Errorf("job = %+v, want failed with public message", got)
			}
			if !strings.Contains(buf.String(), "Analysis failed") {
				t.Errorf("real cause not logged: %s", buf.String())
			}
		})
	}
}

func TestAnalysisWorker_NothingToDo(t *testing.T) {
	ctx := context.Background()
	jobStore := inmemory.NewStore()
	job := newJob(t, jobStore, jobs.KindAnalysis)

	called := false
	classifier := &MockClassifier{ClassifyFunc: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
		called = true
		return nil, nil
	}}
	worker := pipeline.NewAnalysisWorker(newMemStore(), jobStore, classifier, nil, 0)
	if err := worker.Run(ctx, job.ID, "u1", classify.Request{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("classifier called with no rows")
	}
	got, _ := jobStore.GetJob(ctx, job.ID)
	if got.State != jobs.StateCompleted || got.Total != 0 {
		t.Errorf("job = %+v", got)
	}
}
