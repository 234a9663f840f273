package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
)

// DefaultBatchSize is the number of transactions classified per batch.
const DefaultBatchSize = 10

// PublicAnalysisError is the job error shown to users; the real cause is
// only logged.
const PublicAnalysisError = "Analysis failed due to a temporary model issue. Please try again."

var errIncompleteBatch = errors.New("classifier returned fewer results than transactions")

// AnalysisWorker classifies every unclassified debit of a user.
type AnalysisWorker struct {
	store      TransactionStore
	jobs       jobs.JobStore
	classifier Classifier
	exporter   Exporter
	batchSize  int
}

// NewAnalysisWorker creates a worker. exporter may be nil.
func NewAnalysisWorker(store TransactionStore, jobStore jobs.JobStore, classifier Classifier, exporter Exporter, batchSize int) *AnalysisWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &AnalysisWorker{
		store:      store,
		jobs:       jobStore,
		classifier: classifier,
		exporter:   exporter,
		batchSize:  batchSize,
	}
}

// Run pulls batches in (date, id) order until none remain.
func (w *AnalysisWorker) Run(ctx context.Context, jobID, userID string, req classify.Request) (err error) {
	log := logger.FromContext(ctx).With().Str("job_id", jobID).Str("user_id", userID).Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			err = w.fail(ctx, jobID, fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	total, err := w.store.CountUnclassifiedDebits(ctx, userID)
	if err != nil {
		return w.fail(ctx, jobID, fmt.Errorf("count unclassified: %w", err))
	}
	if err := w.jobs.MarkRunning(ctx, jobID, total); err != nil {
		return w.fail(ctx, jobID, fmt.Errorf("mark running: %w", err))
	}
	log.Info().Int("total", total).Str("business_type", req.BusinessType).Msg("Starting analysis")

	var (
		processed  int
		classified []domain.Transaction
	)
	for {
		batch, err := w.store.ListUnclassifiedDebits(ctx, userID, w.batchSize)
		if err != nil {
			return w.fail(ctx, jobID, fmt.Errorf("list batch: %w", err))
		}
		if len(batch) == 0 {
			break
		}

		results, err := w.classifier.Classify(ctx, req, batch)
		if err != nil {
			return w.fail(ctx, jobID, err)
		}
		if len(results) != len(batch) {
			return w.fail(ctx, jobID, fmt.Errorf("%w: %d of %d", errIncompleteBatch, len(results), len(batch)))
		}

		for i, res := range results {
			if err := w.store.UpdateClassification(ctx, userID, res.TransactionID, res.Classification); err != nil {
				return w.fail(ctx, jobID, fmt.Errorf("write classification: %w", err))
			}
			classified = append(classified, withClassification(batch[i], res.Classification))
		}

		processed += len(batch)
		if err := w.jobs.UpdateProgress(ctx, jobID, processed); err != nil {
			return w.fail(ctx, jobID, fmt.Errorf("update progress: %w", err))
		}
	}

	if err := w.jobs.MarkCompleted(ctx, jobID); err != nil {
		return fmt.Errorf("AnalysisWorker.Run: mark completed: %w", err)
	}
	log.Info().Int("processed", processed).Msg("Analysis completed")

	if w.exporter != nil && len(classified) > 0 {
		if err := w.exporter.ExportClassified(ctx, userID, classified); err != nil {
			log.Error().Err(err).Msg("Export of classified transactions failed")
		}
	}
	return nil
}

func (w *AnalysisWorker) fail(ctx context.Context, jobID string, cause error) error {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Msg("Analysis failed")
	if err := w.jobs.MarkFailed(ctx, jobID, PublicAnalysisError); err != nil {
		log.Error().Err(err).Msg("Failed to mark analysis job failed")
	}
	return cause
}

func withClassification(tx domain.Transaction, c domain.Classification) domain.Transaction {
	category, deductible, reasoning := c.Category, c.IsDeductible, c.Reasoning
	tx.Category = &category
	tx.IsDeductible = &deductible
	tx.Reasoning = &reasoning
	return tx
}
