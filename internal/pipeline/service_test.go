package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/filestore"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/jobs/inmemory"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/pipeline"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
	"github.com/rs/zerolog"
)

type serviceFixture struct {
	svc     *pipeline.Service
	queue   *inmemory.Queue
	jobs    *inmemory.Store
	store   *memStore
	root    string
	lastReq classify.Request
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	reg, err := profiles.Default()
	if err != nil {
		t.Fatalf("profiles.Default: %v", err)
	}

	f := &serviceFixture{
		queue: inmemory.NewQueue(context.Background(), zerolog.Nop()),
		jobs:  inmemory.NewStore(),
		store: newMemStore(),
		root:  t.TempDir(),
	}
	if err := os.MkdirAll(filepath.Join(f.root, "statements"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.root, "statements", "chase.csv"), []byte(chaseCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	classifier := &MockClassifier{ClassifyFunc: func(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error) {
		f.lastReq = req
		return deductibleEverything(ctx, req, txs)
	}}
	ingestion := pipeline.NewIngestionRunner(filestore.NewLocal(f.root), f.store, f.jobs)
	analysis := pipeline.NewAnalysisWorker(f.store, f.jobs, classifier, nil, 10)
	f.svc = pipeline.NewService(f.queue, f.jobs, f.store, ingestion, analysis, reg)
	return f
}

func (f *serviceFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.queue.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestService_StartIngestion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	seed(f.store, "u1", 3)
	seed(f.store, "u2", 1)

	job, err := f.svc.StartIngestion(ctx, "u1", "token", "statements")
	if err != nil {
		t.Fatalf("StartIngestion: %v", err)
	}
	if job.Kind != jobs.KindIngestion {
		t.Errorf("kind = %s", job.Kind)
	}
	f.drain(t)

	got, err := f.svc.JobStatus(ctx, job.ID, "u1")
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if got.State != jobs.StateCompleted {
		t.Fatalf("state = %s, error = %v", got.State, got.Error)
	}
	// Seeded rows are replaced by the two Chase purchases.
	if n := f.store.count("u1"); n != 2 {
		t.Errorf("u1 rows = %d, want 2", n)
	}
	if n := f.store.count("u2"); n != 1 {
		t.Errorf("other user's rows touched: %d", n)
	}
}

func TestService_StartIngestionRequiresFolder(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.svc.StartIngestion(context.Background(), "u1", "token", "  "); !errors.Is(err, pipeline.ErrMissingFolder) {
		t.Errorf("error = %v, want ErrMissingFolder", err)
	}
	if f.store.deletes != 0 {
		t.Error("rows deleted for a rejected request")
	}
}

func TestService_StartAnalysis(t *testing.T) {
	tests := []struct {
		name         string
		businessType string
		wantKey      string
		wantErr      error
	}{
		{name: "canonical key", businessType: "restaurant", wantKey: "restaurant"},
		{name: "alias", businessType: "Software Engineer", wantKey: "freelance_software"},
		{name: "unknown", businessType: "astronaut", wantErr: pipeline.ErrUnknownBusinessType},
		{name: "blank", businessType: "", wantErr: pipeline.ErrUnknownBusinessType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			ctx := context.Background()
			seed(f.store, "u1", 2)

			job, err := f.svc.StartAnalysis(ctx, "u1", classify.Request{BusinessType: tt.businessType, Aggressiveness: "bold"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if f.store.resets != 0 {
					t.Error("classifications reset for a rejected request")
				}
				return
			}
			if err != nil {
				t.Fatalf("StartAnalysis: %v", err)
			}
			f.drain(t)

			got, _ := f.svc.JobStatus(ctx, job.ID, "u1")
			if got.State != jobs.StateCompleted {
				t.Fatalf("state = %s", got.State)
			}
			if f.lastReq.BusinessType != tt.wantKey {
				t.Errorf("business type = %q, want %q", f.lastReq.BusinessType, tt.wantKey)
			}
			if f.lastReq.Aggressiveness != classify.Moderate {
				t.Errorf("aggressiveness = %q, want moderate", f.lastReq.Aggressiveness)
			}
			if f.store.resets != 1 {
				t.Errorf("resets = %d, want 1", f.store.resets)
			}
		})
	}
}

func TestService_JobStatusOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	job, err := f.svc.StartIngestion(ctx, "u1", "token", "statements")
	if err != nil {
		t.Fatalf("StartIngestion: %v", err)
	}
	f.drain(t)

	if _, err := f.svc.JobStatus(ctx, job.ID, "u2"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("foreign lookup error = %v, want ErrJobNotFound", err)
	}
	latest, err := f.svc.LatestJob(ctx, "u1", jobs.KindIngestion)
	if err != nil || latest.ID != job.ID {
		t.Errorf("LatestJob = %v, %v", latest, err)
	}
}

func TestService_EnqueueAfterStop(t *testing.T) {
	f := newServiceFixture(t)
	f.drain(t)

	_, err := f.svc.StartIngestion(context.Background(), "u1", "token", "statements")
	if !errors.Is(err, jobs.ErrRunnerStopped) {
		t.Fatalf("error = %v, want ErrRunnerStopped", err)
	}
	latest, _ := f.jobs.LatestJob(context.Background(), "u1", jobs.KindIngestion)
	if latest == nil || latest.State != jobs.StateFailed {
		t.Errorf("unqueued job = %+v, want failed", latest)
	}
}
