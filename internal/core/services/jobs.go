package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// JobRunner executes extraction and indexing work out-of-band so
// callers can submit and poll instead of holding a connection open for
// a multi-minute provider call.
type JobRunner struct {
	mu   sync.RWMutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

type job struct {
	status driving.JobStatus
	cancel context.CancelFunc
}

// NewJobRunner builds an in-memory job runner. Job state is not
// persisted; a restart forgets finished jobs and never resumes
// half-run ones, which is safe because all job writes are idempotent.
func NewJobRunner() *JobRunner {
	return &JobRunner{jobs: make(map[string]*job)}
}

var _ driving.JobService = (*JobRunner)(nil)

// Submit enqueues the work and returns immediately with the job ID.
// The job's context is detached from the caller's so an HTTP
// disconnect does not abort the work; only Cancel and Shutdown do.
func (r *JobRunner) Submit(ctx context.Context, kind, documentID string, run func(ctx context.Context) error) (string, error) {
	if run == nil {
		return "", fmt.Errorf("%w: job body is required", domain.ErrInvalidInput)
	}

	id := uuid.New().String()
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	j := &job{
		status: driving.JobStatus{
			ID:          id,
			Kind:        kind,
			DocumentID:  documentID,
			State:       driving.JobPending,
			SubmittedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		r.setState(id, driving.JobRunning, "")
		logger.Debug("job %s (%s) started for document %s", id, kind, documentID)

		err := run(jobCtx)
		switch {
		case jobCtx.Err() != nil:
			r.setState(id, driving.JobCancelled, "")
		case err != nil:
			logger.Warn("job %s (%s) failed: %v", id, kind, err)
			r.setState(id, driving.JobFailed, err.Error())
		default:
			r.setState(id, driving.JobSucceeded, "")
		}
	}()

	return id, nil
}

// Status reports a snapshot of the job's state.
func (r *JobRunner) Status(ctx context.Context, jobID string) (*driving.JobStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	status := j.status
	return &status, nil
}

// Cancel cancels a pending or running job. Cancelling a finished job
// is a no-op.
func (r *JobRunner) Cancel(ctx context.Context, jobID string) error {
	r.mu.RLock()
	j, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	j.cancel()
	return nil
}

// Shutdown cancels every job and waits for the workers to drain.
func (r *JobRunner) Shutdown() {
	r.mu.RLock()
	for _, j := range r.jobs {
		j.cancel()
	}
	r.mu.RUnlock()
	r.wg.Wait()
}

func (r *JobRunner) setState(jobID string, state driving.JobState, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return
	}
	j.status.State = state
	j.status.Err = errMsg
	if state == driving.JobSucceeded || state == driving.JobFailed || state == driving.JobCancelled {
		j.status.FinishedAt = time.Now().UTC()
	}
}
