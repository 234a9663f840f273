package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
)

var (
	ErrUnknownBusinessType = errors.New("unknown business type")
	ErrMissingFolder       = errors.New("folder id is required")
)

// Service starts ingestion and analysis jobs on the shared runner.
type Service struct {
	runner    jobs.Runner
	jobs      jobs.JobStore
	store     TransactionStore
	ingestion *IngestionRunner
	analysis  *AnalysisWorker
	profiles  ProfileGate
}

// NewService wires the job entry points.
func NewService(runner jobs.Runner, jobStore jobs.JobStore, store TransactionStore, ingestion *IngestionRunner, analysis *AnalysisWorker, profiles ProfileGate) *Service {
	return &Service{
		runner:    runner,
		jobs:      jobStore,
		store:     store,
		ingestion: ingestion,
		analysis:  analysis,
		profiles:  profiles,
	}
}

// StartIngestion replaces the user's transactions with the folder's
// contents. Existing rows are deleted before the job is queued.
func (s *Service) StartIngestion(ctx context.Context, userID, token, folderID string) (*jobs.Job, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, ErrMissingFolder
	}

	deleted, err := s.store.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("StartIngestion: delete existing: %w", err)
	}

	job := &jobs.Job{Kind: jobs.KindIngestion, UserID: userID}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("StartIngestion: create job: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.ID).Int64("deleted", deleted).Msg("Queued ingestion")

	if err := s.enqueue(ctx, job, func(taskCtx context.Context) {
		_ = s.ingestion.Run(logger.WithContext(taskCtx, log), job.ID, userID, token, folderID)
	}); err != nil {
		return nil, fmt.Errorf("StartIngestion: %w", err)
	}
	return job, nil
}

// StartAnalysis resets the user's classifications and queues a fresh run.
func (s *Service) StartAnalysis(ctx context.Context, userID string, req classify.Request) (*jobs.Job, error) {
	p, ok := s.profiles.Lookup(req.BusinessType)
	if !ok || !s.profiles.IsCanonical(p.Key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBusinessType, req.BusinessType)
	}
	req.BusinessType = p.Key
	req.Aggressiveness = classify.ParseAggressiveness(string(req.Aggressiveness))

	if err := s.store.ResetClassifications(ctx, userID); err != nil {
		return nil, fmt.Errorf("StartAnalysis: reset classifications: %w", err)
	}

	job := &jobs.Job{Kind: jobs.KindAnalysis, UserID: userID}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("StartAnalysis: create job: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.ID).Str("business_type", req.BusinessType).Msg("Queued analysis")

	if err := s.enqueue(ctx, job, func(taskCtx context.Context) {
		_ = s.analysis.Run(logger.WithContext(taskCtx, log), job.ID, userID, req)
	}); err != nil {
		return nil, fmt.Errorf("StartAnalysis: %w", err)
	}
	return job, nil
}

// JobStatus returns a job owned by userID.
func (s *Service) JobStatus(ctx context.Context, jobID, userID string) (*jobs.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	return job, nil
}

// LatestJob returns the user's most recent job of kind.
func (s *Service) LatestJob(ctx context.Context, userID string, kind jobs.Kind) (*jobs.Job, error) {
	return s.jobs.LatestJob(ctx, userID, kind)
}

func (s *Service) enqueue(ctx context.Context, job *jobs.Job, task jobs.Task) error {
	if err := s.runner.Enqueue(task); err != nil {
		if markErr := s.jobs.MarkFailed(ctx, job.ID, "job could not be queued"); markErr != nil {
			logger.FromContext(ctx).Error().Err(markErr).Msg("Failed to mark unqueued job")
		}
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}
