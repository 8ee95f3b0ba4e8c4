package driving

import (
	"context"
	"time"
)

// JobState is the lifecycle state of a background job.
type JobState string

// Job states.
const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// JobStatus is a point-in-time snapshot of a background job.
type JobStatus struct {
	// ID is the job identifier.
	ID string

	// Kind names the work, e.g. "extract" or "index".
	Kind string

	// DocumentID is the document the job operates on.
	DocumentID string

	// State is the current lifecycle state.
	State JobState

	// Err holds the failure message for JobFailed.
	Err string

	// SubmittedAt and FinishedAt bound the job's lifetime.
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// JobService runs extraction and indexing out-of-band. Provider
// latency is multi-second to minute scale, so callers submit work and
// poll rather than wait inline. All of a job's document writes are
// staged and committed only on success: cancellation leaves no partial
// field or chunk state.
type JobService interface {
	// Submit enqueues work and returns its job ID.
	Submit(ctx context.Context, kind, documentID string, run func(ctx context.Context) error) (string, error)

	// Status reports a job's state, or domain.ErrJobNotFound.
	Status(ctx context.Context, jobID string) (*JobStatus, error)

	// Cancel cancels a pending or running job by ID.
	Cancel(ctx context.Context, jobID string) error
}
