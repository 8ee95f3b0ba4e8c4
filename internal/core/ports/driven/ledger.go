package driven

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// LedgerStore persists extracted values and the append-only correction
// log. Values are never overwritten in place: saving a field or an
// obligation inserts a new version and re-points "current".
type LedgerStore interface {
	// SaveField inserts a new field version and marks it current,
	// superseding the previous current version for (document, key).
	SaveField(ctx context.Context, field *domain.ExtractedField) error

	// SaveFields persists a batch of field versions in one transaction.
	// Either every field is committed or none is: a failure or a
	// cancelled context mid-batch leaves no partial state.
	SaveFields(ctx context.Context, fields []*domain.ExtractedField) error

	// CurrentField returns the current version for (document, key), or
	// domain.ErrNotFound.
	CurrentField(ctx context.Context, documentID string, key domain.FieldKey) (*domain.ExtractedField, error)

	// CurrentFields returns the current version of every field for the
	// document.
	CurrentFields(ctx context.Context, documentID string) ([]domain.ExtractedField, error)

	// FieldHistory returns every version for (document, key), oldest
	// first.
	FieldHistory(ctx context.Context, documentID string, key domain.FieldKey) ([]domain.ExtractedField, error)

	// GetField retrieves a field version by its version ID.
	GetField(ctx context.Context, id string) (*domain.ExtractedField, error)

	// SaveObligation inserts a new version for the obligation ID and
	// marks it current. The obligation ID is stable across versions.
	SaveObligation(ctx context.Context, ob *domain.Obligation) error

	// SaveObligations persists a batch of obligation versions in one
	// transaction, all or nothing, like SaveFields.
	SaveObligations(ctx context.Context, obs []*domain.Obligation) error

	// GetObligation returns the current version of an obligation.
	GetObligation(ctx context.Context, id string) (*domain.Obligation, error)

	// CurrentObligations returns the current version of every
	// obligation for the document.
	CurrentObligations(ctx context.Context, documentID string) ([]domain.Obligation, error)

	// AppendCorrection appends a correction record. Corrections are
	// never deleted. Earlier non-superseded corrections for the same
	// target are marked superseded, not removed.
	AppendCorrection(ctx context.Context, c *domain.Correction) error

	// Corrections returns every correction for the document, oldest
	// first.
	Corrections(ctx context.Context, documentID string) ([]domain.Correction, error)
}
