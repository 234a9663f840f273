package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JobStore persists job state so status survives a restart as "running"
// rather than disappearing.
type JobStore struct {
	db DB
}

// NewJobStore creates a job store on db.
func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, kind, user_id, state, processed, total, error, created_at, updated_at`

// CreateJob implements the JobStore interface.
func (s *JobStore) CreateJob(ctx context.Context, job *jobs.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.State = jobs.StateQueued
	err := s.db.QueryRow(ctx, `
		INSERT INTO jobs (id, kind, user_id, state, processed, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		job.ID, string(job.Kind), job.UserID, string(job.State), job.Processed, job.Total,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateJob: %w", err)
	}
	return nil
}

// GetJob implements the JobStore interface.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: %w", err)
	}
	return job, nil
}

// LatestJob implements the JobStore interface.
func (s *JobStore) LatestJob(ctx context.Context, userID string, kind jobs.Kind) (*jobs.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s job for user", jobs.ErrJobNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("LatestJob: %w", err)
	}
	return job, nil
}

// MarkRunning implements the JobStore interface.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string, total int) error {
	return s.update(ctx, "MarkRunning", `state = 'running', total = $2`, jobID, total)
}

// SetTotal implements the JobStore interface.
func (s *JobStore) SetTotal(ctx context.Context, jobID string, total int) error {
	return s.update(ctx, "SetTotal", `total = $2`, jobID, total)
}

// UpdateProgress implements the JobStore interface.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID string, processed int) error {
	return s.update(ctx, "UpdateProgress", `processed = $2`, jobID, processed)
}

// MarkCompleted implements the JobStore interface.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string) error {
	return s.update(ctx, "MarkCompleted", `state = 'completed', error = NULL`, jobID)
}

// MarkFailed implements the JobStore interface.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, message string) error {
	return s.update(ctx, "MarkFailed", `state = 'failed', error = $2`, jobID, message)
}

func (s *JobStore) update(ctx context.Context, op, set string, jobID string, args ...any) error {
	tag, err := s.db.Exec(ctx, `UPDATE jobs SET `+set+`, updated_at = now() WHERE id = $1`,
		append([]any{jobID}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w: %s", op, jobs.ErrJobNotFound, jobID)
	}
	return nil
}

func scanJob(row pgx.Row) (*jobs.Job, error) {
	var (
		j     jobs.Job
		kind  string
		state string
	)
	if err := row.Scan(&j.ID, &kind, &j.UserID, &state, &j.Processed, &j.Total, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Kind = jobs.Kind(kind)
	j.State = jobs.State(state)
	return &j, nil
}

var _ jobs.JobStore = (*JobStore)(nil)
