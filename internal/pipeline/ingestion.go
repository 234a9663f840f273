// Package pipeline orchestrates statement ingestion and classification
// jobs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/filestore"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
)

// IngestionRunner imports every supported file of a folder for one user.
type IngestionRunner struct {
	files    filestore.Store
	jobs     jobs.JobStore
	pipeline *Pipeline
}

// NewIngestionRunner creates a runner using the standard file pipeline.
func NewIngestionRunner(files filestore.Store, store TransactionStore, jobStore jobs.JobStore) *IngestionRunner {
	return &IngestionRunner{
		files:    files,
		jobs:     jobStore,
		pipeline: NewFileIngestionPipeline(files, store),
	}
}

// Run processes the folder's files in listing order. The first file error
// fails the job; rows inserted from earlier files are kept.
func (r *IngestionRunner) Run(ctx context.Context, jobID, userID, token, folderID string) error {
	log := logger.FromContext(ctx).With().Str("job_id", jobID).Str("user_id", userID).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := r.jobs.MarkRunning(ctx, jobID, 0); err != nil {
		return fmt.Errorf("IngestionRunner.Run: mark running: %w", err)
	}

	files, err := r.files.ListFiles(ctx, token, folderID)
	if err != nil {
		return r.fail(ctx, jobID, fmt.Errorf("list files in folder %s: %w", folderID, err))
	}
	if err := r.jobs.SetTotal(ctx, jobID, len(files)); err != nil {
		return r.fail(ctx, jobID, fmt.Errorf("record total: %w", err))
	}
	log.Info().Int("files", len(files)).Msg("Starting ingestion")

	var inserted, skipped int64
	for i, f := range files {
		state := &FileState{UserID: userID, Token: token, File: f}
		if err := r.pipeline.Execute(ctx, state); err != nil {
			return r.fail(ctx, jobID, fmt.Errorf("file %q (%s): %w", f.Name, f.ID, err))
		}
		inserted += state.Inserted
		skipped += int64(state.Result.Skipped)

		log.Info().
			Str("file_id", f.ID).
			Str("file_name", f.Name).
			Str("institution", string(state.Adapter.Institution())).
			Int("rows", len(state.Rows)).
			Int("kept", len(state.Result.Transactions)).
			Int("skipped", state.Result.Skipped).
			Int64("inserted", state.Inserted).
			Msg("File ingested")

		if err := r.jobs.UpdateProgress(ctx, jobID, i+1); err != nil {
			return r.fail(ctx, jobID, fmt.Errorf("update progress: %w", err))
		}
	}

	if err := r.jobs.MarkCompleted(ctx, jobID); err != nil {
		return fmt.Errorf("IngestionRunner.Run: mark completed: %w", err)
	}
	log.Info().Int64("inserted", inserted).Int64("skipped", skipped).Msg("Ingestion completed")
	return nil
}

func (r *IngestionRunner) fail(ctx context.Context, jobID string, cause error) error {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Msg("Ingestion failed")
	if err := r.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to mark ingestion job failed")
	}
	return cause
}
