package jobs

import (
	"context"
	"errors"
	"time"
)

// Kind represents the type of long-running work a job tracks.
type Kind string

const (
	// KindIngestion imports statement files from a folder.
	KindIngestion Kind = "ingestion"
	// KindAnalysis classifies unclassified debits.
	KindAnalysis Kind = "analysis"
)

// State represents the current status of a job.
type State string

const (
	// StateQueued indicates the job is waiting for the runner.
	StateQueued State = "queued"
	// StateRunning indicates the job is currently being processed.
	StateRunning State = "running"
	// StateCompleted indicates the job completed successfully.
	StateCompleted State = "completed"
	// StateFailed indicates the job failed; Error carries the message.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrJobNotFound is returned by stores for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrRunnerStopped is returned when enqueueing after Stop.
var ErrRunnerStopped = errors.New("runner is stopped")

// Job is the persisted progress record of one ingestion or analysis run.
// Only the owning worker mutates it; API callers read it.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"jobId"`

	// Kind is ingestion or analysis.
	Kind Kind `json:"kind"`

	// UserID owns the job.
	UserID string `json:"-"`

	// State is the current state.
	State State `json:"state"`

	// Processed counts files (ingestion) or transactions (analysis) done so far.
	Processed int `json:"processed"`

	// Total is the expected number of units, known once the job is running.
	Total int `json:"total"`

	// Error holds the terminal failure message.
	Error *string `json:"error"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the time of the last transition or progress update.
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// CreateJob persists a new job in the queued state.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// LatestJob returns the most recently created job of a kind for a user.
	LatestJob(ctx context.Context, userID string, kind Kind) (*Job, error)

	// MarkRunning moves a job to running and records its total.
	MarkRunning(ctx context.Context, jobID string, total int) error

	// SetTotal updates the expected number of units.
	SetTotal(ctx context.Context, jobID string, total int) error

	// UpdateProgress records the processed counter.
	UpdateProgress(ctx context.Context, jobID string, processed int) error

	// MarkCompleted moves a job to completed.
	MarkCompleted(ctx context.Context, jobID string) error

	// MarkFailed moves a job to failed with a message.
	MarkFailed(ctx context.Context, jobID string, message string) error
}

// Task is one unit of work handed to a Runner.
type Task func(ctx context.Context)

// Runner executes tasks one at a time in submission order.
type Runner interface {
	// Enqueue appends a task and starts draining if no drain is active.
	Enqueue(task Task) error

	// Stop rejects new tasks and waits for the active drain to finish.
	Stop(ctx context.Context) error
}
