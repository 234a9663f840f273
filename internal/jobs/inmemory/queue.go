package inmemory

import (
	"context"
	"sync"

	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/rs/zerolog"
)

// Queue is an in-process FIFO task runner with at most one active drain
// loop. Tasks run strictly one at a time in enqueue order. Pending tasks are
// not persisted: a restart drops anything that has not started.
type Queue struct {
	mu       sync.Mutex
	pending  []jobs.Task
	draining bool
	closed   bool
	idle     chan struct{}

	base context.Context
	log  zerolog.Logger
}

// NewQueue creates a runner whose tasks receive base as their context.
func NewQueue(base context.Context, log zerolog.Logger) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		base: base,
		log:  log,
		idle: idle,
	}
}

// Enqueue implements the Runner interface.
func (q *Queue) Enqueue(task jobs.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobs.ErrRunnerStopped
	}
	q.pending = append(q.pending, task)

	if !q.draining {
		q.draining = true
		q.idle = make(chan struct{})
		go q.drain(q.idle)
	}
	return nil
}

// drain pops and runs tasks until the queue is empty. The emptiness check and
// the flag reset happen under one lock so a task enqueued during the last
// run is never stranded.
func (q *Queue) drain(done chan struct{}) {
	defer close(done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

func (q *Queue) run(task jobs.Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("Task panicked")
		}
	}()
	task(q.base)
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Draining reports whether a drain loop is active.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Stop implements the Runner interface.
// It rejects new tasks and waits for queued and in-flight tasks to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Queue implements the Runner interface.
var _ jobs.Runner = (*Queue)(nil)
