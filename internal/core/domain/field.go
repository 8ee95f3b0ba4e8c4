package domain

import (
	"fmt"
	"time"
)

// FieldKey identifies one of the enumerated contract metadata fields.
type FieldKey string

// The fixed set of extractable metadata fields.
const (
	FieldProjectName    FieldKey = "ProjectName"
	FieldClientName     FieldKey = "ClientName"
	FieldContractValue  FieldKey = "ContractValue"
	FieldStartDate      FieldKey = "StartDate"
	FieldEndDate        FieldKey = "EndDate"
	FieldCountry        FieldKey = "Country"
	FieldPaymentTerms   FieldKey = "PaymentTerms"
	FieldServices       FieldKey = "Services"
	FieldKPIs           FieldKey = "KPIs"
	FieldSLAs           FieldKey = "SLAs"
	FieldPenaltyClauses FieldKey = "PenaltyClauses"
)

// AllFieldKeys returns the full enumerated key set in canonical order.
func AllFieldKeys() []FieldKey {
	return []FieldKey{
		FieldProjectName, FieldClientName, FieldContractValue,
		FieldStartDate, FieldEndDate, FieldCountry, FieldPaymentTerms,
		FieldServices, FieldKPIs, FieldSLAs, FieldPenaltyClauses,
	}
}

// ParseFieldKey validates a string against the enumerated key set.
func ParseFieldKey(s string) (FieldKey, error) {
	for _, k := range AllFieldKeys() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown field key %q", ErrInvalidInput, s)
}

// ValueSource records whether a value came from an automated extractor
// or a human correction.
type ValueSource string

// Value provenance sources.
const (
	SourceAI    ValueSource = "ai"
	SourceHuman ValueSource = "human"
)

// ExtractedField is one extracted metadata value with provenance.
// Exactly one current value exists per (document, key); superseded
// values are retained as history by the correction ledger.
type ExtractedField struct {
	// ID is the unique identifier for this field version.
	ID string

	// DocumentID links to the source document.
	DocumentID string

	// Key is the enumerated field this value belongs to.
	Key FieldKey

	// Value is the extracted or corrected value.
	Value string

	// Confidence is in [0,1]. Human-corrected values are always 1.0.
	Confidence float64

	// Source records the value's provenance.
	Source ValueSource

	// Offset is the supporting text range, nil when the extractor could
	// not anchor the value to source text.
	Offset *TextOffset

	// Method names the extraction method that produced the value, for
	// diagnostics ("pattern", "generative", "correction").
	Method string

	// Version is the 1-based version number within (document, key).
	Version int

	// Current marks the materialised current value.
	Current bool

	// CreatedAt is when this version was produced.
	CreatedAt time.Time
}

// HasEvidence reports whether the value is anchored to source text.
func (f ExtractedField) HasEvidence() bool {
	return f.Offset != nil && f.Offset.Len() > 0
}
