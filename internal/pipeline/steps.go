package pipeline

import (
	"context"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/adapters"
	"github.com/colaso96/beforeyouradvisor/internal/filestore"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/statement"
)

// PipelineStep represents a single step in the per-file ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *FileState) error
}

// FileState holds the shared state across all steps for one file.
type FileState struct {
	UserID string
	Token  string
	File   filestore.File

	Data    []byte
	Headers []string
	Rows    []adapters.RawRow
	Adapter adapters.Adapter
	Result  adapters.Result

	Inserted int64
}

// Step 1: DownloadStep fetches the file bytes.
type DownloadStep struct {
	Files filestore.Store
}

func (s *DownloadStep) Execute(ctx context.Context, state *FileState) error {
	data, err := s.Files.Download(ctx, state.Token, state.File.ID)
	if err != nil {
		return err
	}
	state.Data = data
	return nil
}

// Step 2: ParseStep turns the bytes into raw rows. CSV files keep their
// header row for adapter selection; PDFs go through layout reconstruction.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *FileState) error {
	if state.File.IsPDF() {
		lines, err := statement.ExtractLines(state.Data)
		if err != nil {
			return fmt.Errorf("parse pdf: %w", err)
		}
		rows, stats := statement.ParseWithStats(lines)
		if len(rows) == 0 && stats.SectionLines > 0 {
			logger.FromContext(ctx).Warn().
				Str("file_name", state.File.Name).
				Int("section_lines", stats.SectionLines).
				Int("unanchored", stats.Unanchored).
				Msg("Transactions section produced no rows; row dates must include the year")
		}
		state.Rows = statement.RawRows(rows)
		return nil
	}

	headers, rows, err := adapters.ReadCSV(state.Data)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	state.Headers = headers
	state.Rows = rows
	return nil
}

// Step 3: SelectAdapterStep picks the institution adapter.
type SelectAdapterStep struct{}

func (s *SelectAdapterStep) Execute(ctx context.Context, state *FileState) error {
	if state.File.IsPDF() {
		state.Adapter = adapters.CryptoCard()
		return nil
	}
	state.Adapter = adapters.SelectCSVAdapter(state.File.Name, state.Headers, state.Rows)
	return nil
}

// Step 4: NormalizeStep converts raw rows into canonical debits.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *FileState) error {
	if state.Adapter == nil {
		return fmt.Errorf("normalize: no adapter selected")
	}
	state.Result = state.Adapter.Normalize(ctx, state.UserID, state.Rows)
	return nil
}

// Step 5: PersistStep bulk-inserts with conflict-ignore on the dedup key.
type PersistStep struct {
	Store TransactionStore
}

func (s *PersistStep) Execute(ctx context.Context, state *FileState) error {
	if len(state.Result.Transactions) == 0 {
		return nil
	}
	n, err := s.Store.InsertTransactions(ctx, state.Result.Transactions)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	state.Inserted = n
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *FileState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewFileIngestionPipeline creates the standard 5-step pipeline for one file.
func NewFileIngestionPipeline(files filestore.Store, store TransactionStore) *Pipeline {
	return NewPipeline(
		&DownloadStep{Files: files},
		&ParseStep{},
		&SelectAdapterStep{},
		&NormalizeStep{},
		&PersistStep{Store: store},
	)
}
