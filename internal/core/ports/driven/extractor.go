package driven

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// FieldCandidate is a raw metadata value proposed by an extractor.
// The extraction engine turns candidates into domain.ExtractedField by
// applying the confidence function; extractors only report their own
// certainty.
type FieldCandidate struct {
	// Key is the enumerated field the value belongs to.
	Key domain.FieldKey

	// Value is the proposed value. Extractors must never fabricate a
	// value that does not appear in or follow from the text.
	Value string

	// Certainty is the extractor's self-reported certainty in [0,1].
	Certainty float64

	// Offset anchors the value to source text, nil when the extractor
	// could not locate supporting text.
	Offset *domain.TextOffset

	// Method names the technique that produced the candidate.
	Method string
}

// ObligationCandidate is a raw obligation proposed by an extractor.
// Frequency, due date and penalty are reported as raw text; the engine
// normalises and classifies them.
type ObligationCandidate struct {
	// Description is the obligation sentence.
	Description string

	// Certainty is the extractor's self-reported certainty in [0,1].
	Certainty float64

	// Offset is the sentence range in the source text.
	Offset domain.TextOffset

	// FrequencyText is the raw recurrence phrase, empty if none found.
	FrequencyText string

	// DueDateText is the raw deadline phrase found in the bounded
	// window around the sentence, empty if none found.
	DueDateText string

	// PenaltyText is the raw penalty phrase found in the bounded
	// window, empty if none found.
	PenaltyText string

	// Method names the technique that produced the candidate.
	Method string
}

// FieldExtractor proposes metadata field candidates from text.
type FieldExtractor interface {
	// Name returns the provider name.
	Name() string

	// ExtractFields proposes zero or one candidate per requested key.
	// Absence of a field is not an error.
	ExtractFields(ctx context.Context, text string, keys []domain.FieldKey) ([]FieldCandidate, error)

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ObligationExtractor proposes obligation candidates from text.
type ObligationExtractor interface {
	// Name returns the provider name.
	Name() string

	// ExtractObligations proposes candidate obligations. Overlapping
	// candidates are allowed; the engine deduplicates by offset
	// containment.
	ExtractObligations(ctx context.Context, text string, includePenalties bool) ([]ObligationCandidate, error)

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// AnswerGenerator synthesises a natural-language answer from retrieved
// context. Optional: when absent the query engine falls back to an
// extractive answer.
type AnswerGenerator interface {
	// GenerateAnswer answers the question using only the supplied
	// context passages.
	GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error)
}
