package domain

import "errors"

// Error taxonomy for the document-intelligence core. Provider errors
// are translated into these at the adapter boundary; callers branch
// with errors.Is.
var (
	// ErrDocumentUnreadable indicates the document bytes cannot be
	// processed at all. Fatal: never retried.
	ErrDocumentUnreadable = errors.New("document unreadable")

	// ErrProviderUnavailable indicates a transient provider failure.
	// Surfaced only after the bounded retry budget is exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidInput indicates a malformed request or filter.
	// Returned immediately, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexInconsistency indicates an internal index invariant was
	// violated, e.g. an orphaned chunk. Logged and self-healed, never
	// exposed to callers as a response value.
	ErrIndexInconsistency = errors.New("index inconsistency")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrJobNotFound indicates an unknown extraction or indexing job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobCancelled indicates the job was cancelled before it
	// committed any writes.
	ErrJobCancelled = errors.New("job cancelled")
)
