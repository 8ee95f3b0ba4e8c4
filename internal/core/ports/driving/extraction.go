package driving

import (
	"context"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// MetadataRequest asks for metadata extraction from a stored document
// or from raw text. Exactly one of DocumentID or Text must be set.
type MetadataRequest struct {
	// DocumentID selects a stored document.
	DocumentID string

	// Text supplies raw text directly, bypassing the document store.
	Text string

	// Keys restricts extraction to the given fields. Empty means all
	// enumerated keys.
	Keys []domain.FieldKey

	// ConfidenceThreshold drops fields scoring below it. Zero means
	// the configured default.
	ConfidenceThreshold float64

	// ForceReextraction re-extracts keys that already carry a
	// human-confirmed value. Default re-extraction skips them.
	ForceReextraction bool
}

// MetadataResult is the outcome of a metadata extraction pass.
type MetadataResult struct {
	// Fields are the extracted values that cleared the threshold.
	Fields []domain.ExtractedField

	// SkippedKeys are keys left untouched because a human-confirmed
	// value exists and ForceReextraction was not set.
	SkippedKeys []domain.FieldKey

	// OverallConfidence is the mean confidence of returned fields.
	OverallConfidence float64

	// AttemptedKeys is the number of keys the extractor attempted.
	AttemptedKeys int

	// Provider is the extraction provider that produced the result.
	Provider string

	// ProcessingTime is the wall-clock extraction duration.
	ProcessingTime time.Duration
}

// ObligationsRequest asks for obligation extraction. Exactly one of
// DocumentID or Text must be set.
type ObligationsRequest struct {
	DocumentID string
	Text       string

	// IncludePenalties requests penalty text search near each
	// obligation.
	IncludePenalties bool

	// ConfidenceThreshold drops obligations scoring below it. Zero
	// means the configured default.
	ConfidenceThreshold float64
}

// ObligationsResult is the outcome of an obligation extraction pass.
type ObligationsResult struct {
	// Obligations are the deduplicated obligations that cleared the
	// threshold.
	Obligations []domain.Obligation

	// CoverageRate is matched candidates over gated candidate
	// sentences, a proxy for recall.
	CoverageRate float64

	// AverageConfidence is the mean confidence of returned obligations.
	AverageConfidence float64

	// HighConfidenceCount counts obligations with confidence >= 0.8.
	HighConfidenceCount int

	// Categories lists the distinct categories seen.
	Categories []domain.Category

	// Provider is the extraction provider that produced the result.
	Provider string

	// ProcessingTime is the wall-clock extraction duration.
	ProcessingTime time.Duration
}

// ExtractionService runs the extraction engine over documents or raw
// text. Extraction of stored documents persists results through the
// correction ledger; raw-text extraction is side-effect free.
type ExtractionService interface {
	// ExtractMetadata runs the metadata extractor.
	ExtractMetadata(ctx context.Context, req MetadataRequest) (*MetadataResult, error)

	// ExtractObligations runs the obligation extractor.
	ExtractObligations(ctx context.Context, req ObligationsRequest) (*ObligationsResult, error)
}
