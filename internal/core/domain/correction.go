package domain

import "time"

// TargetKind identifies what a correction applies to.
type TargetKind string

// Correction targets.
const (
	TargetField      TargetKind = "field"
	TargetObligation TargetKind = "obligation"
)

// Correction is one append-only ledger record of a human edit.
// Corrections are never deleted; a correction that loses a concurrent
// write race is retained with Superseded set.
type Correction struct {
	// ID is the unique identifier for the correction.
	ID string

	// DocumentID links to the corrected document.
	DocumentID string

	// TargetKind says whether a field or an obligation was corrected.
	TargetKind TargetKind

	// TargetID is the corrected field version ID or obligation ID.
	TargetID string

	// FieldKey is set for field corrections.
	FieldKey FieldKey

	// PreviousValue is the value that was current when the correction
	// was applied.
	PreviousValue string

	// NewValue is the corrected value.
	NewValue string

	// Actor identifies who made the correction.
	Actor string

	// Superseded marks a correction whose value was later replaced by
	// another correction to the same target.
	Superseded bool

	// CreatedAt is when the correction was applied.
	CreatedAt time.Time
}
