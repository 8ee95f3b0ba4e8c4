package driving

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// CorrectionRequest applies one human edit to a field or obligation.
type CorrectionRequest struct {
	// DocumentID is the corrected document.
	DocumentID string

	// TargetKind says whether TargetID names a field version or an
	// obligation.
	TargetKind domain.TargetKind

	// TargetID is the field version ID or the stable obligation ID.
	TargetID string

	// NewValue is the corrected value. For obligations it replaces the
	// description.
	NewValue string

	// Actor identifies who made the correction.
	Actor string
}

// CorrectionService reconciles AI output with human edits. All
// mutation of extracted values flows through here; nothing overwrites
// in place.
type CorrectionService interface {
	// Apply appends a correction, sets the target's source to human and
	// confidence to 1.0, and retains the superseded value as history.
	// Concurrent corrections to the same target are serialised;
	// last-writer-wins with the losing write retained as a superseded
	// correction.
	Apply(ctx context.Context, req CorrectionRequest) (*domain.Correction, error)

	// History returns the document's full correction log, oldest first.
	History(ctx context.Context, documentID string) ([]domain.Correction, error)
}
