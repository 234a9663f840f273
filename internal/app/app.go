// Package app wires the shared component graph used by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/chat"
	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/config"
	"github.com/colaso96/beforeyouradvisor/internal/filestore"
	infraBQ "github.com/colaso96/beforeyouradvisor/internal/infra/bigquery"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/jobs/inmemory"
	"github.com/colaso96/beforeyouradvisor/internal/llm"
	"github.com/colaso96/beforeyouradvisor/internal/pipeline"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// App holds the long-lived components of a process.
type App struct {
	Config config.Config

	Pool         *pgxpool.Pool
	Transactions *postgres.TransactionRepository
	Jobs         *postgres.JobStore
	Queue        *inmemory.Queue

	Profiles *profiles.Registry
	Engine   *classify.Engine
	Agent    *chat.Agent
	Files    filestore.Store
	Exporter *infraBQ.Exporter
	Service  *pipeline.Service

	closers []func() error
}

// New builds every component from cfg. Tasks enqueued on the queue receive
// base as their context.
func New(ctx context.Context, base context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app.New: invalid config: %w", err)
	}

	a := &App{Config: cfg}
	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	a.Profiles, err = profiles.Load(cfg.ProfilesPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	gen, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	a.Files, err = a.openFileStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	var exporter pipeline.Exporter
	if cfg.BigQueryEnabled() {
		a.Exporter, err = infraBQ.NewExporter(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, a.Exporter.Close)
		exporter = a.Exporter
	}

	a.Transactions = postgres.NewTransactionRepository(pool)
	a.Jobs = postgres.NewJobStore(pool)
	a.Queue = inmemory.NewQueue(base, log)

	a.Engine = classify.NewEngine(gen, a.Profiles, classify.Options{
		MaxRetries: cfg.ClassifyMaxRetries,
		BaseDelay:  cfg.ClassifyBaseDelay,
	})
	a.Agent = chat.NewAgent(gen, postgres.NewChatRepository(pool), postgres.NewReadOnlyRunner(pool), chat.Options{
		MaxRetries:      cfg.ChatMaxRetries,
		HistoryWindow:   cfg.ChatHistoryWindow,
		MinTransactions: cfg.ChatMinTransactions,
	})

	ingestion := pipeline.NewIngestionRunner(a.Files, a.Transactions, a.Jobs)
	analysis := pipeline.NewAnalysisWorker(a.Transactions, a.Jobs, a.Engine, exporter, cfg.AnalysisBatchSize)
	a.Service = pipeline.NewService(a.Queue, a.Jobs, a.Transactions, ingestion, analysis, a.Profiles)
	return a, nil
}

func (a *App) openFileStore(ctx context.Context, cfg config.Config) (filestore.Store, error) {
	switch cfg.FileStore {
	case "gcs":
		gcs, err := filestore.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, nil
	case "local":
		return filestore.NewLocal(cfg.LocalRoot), nil
	default:
		return filestore.NewDrive(), nil
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
