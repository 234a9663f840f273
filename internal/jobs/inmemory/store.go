package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of JobStore.
// It stores jobs in memory and is safe for concurrent use.
// Data is lost on restart; the Postgres store persists jobs.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.Job
	now  func() time.Time
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.Job),
		now:  time.Now,
	}
}

// CreateJob implements the JobStore interface.
func (s *Store) CreateJob(ctx context.Context, job *jobs.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.State = jobs.StateQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	// Return a copy to avoid external modifications
	jobCopy := *job
	return &jobCopy, nil
}

// LatestJob implements the JobStore interface.
func (s *Store) LatestJob(ctx context.Context, userID string, kind jobs.Kind) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *jobs.Job
	for _, job := range s.jobs {
		if job.UserID != userID || job.Kind != kind {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no %s job for user", jobs.ErrJobNotFound, kind)
	}
	jobCopy := *latest
	return &jobCopy, nil
}

// MarkRunning implements the JobStore interface.
func (s *Store) MarkRunning(ctx context.Context, jobID string, total int) error {
	return s.update(jobID, func(j *jobs.Job) {
		j.State = jobs.StateRunning
		j.Total = total
	})
}

// SetTotal implements the JobStore interface.
func (s *Store) SetTotal(ctx context.Context, jobID string, total int) error {
	return s.update(jobID, func(j *jobs.Job) { j.Total = total })
}

// UpdateProgress implements the JobStore interface.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, processed int) error {
	return s.update(jobID, func(j *jobs.Job) { j.Processed = processed })
}

// MarkCompleted implements the JobStore interface.
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.update(jobID, func(j *jobs.Job) {
		j.State = jobs.StateCompleted
		j.Error = nil
	})
}

// MarkFailed implements the JobStore interface.
func (s *Store) MarkFailed(ctx context.Context, jobID string, message string) error {
	return s.update(jobID, func(j *jobs.Job) {
		j.State = jobs.StateFailed
		msg := message
		j.Error = &msg
	})
}

func (s *Store) update(jobID string, mutate func(*jobs.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	mutate(job)
	job.UpdatedAt = s.now()
	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
