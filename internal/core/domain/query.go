package domain

import (
	"fmt"
	"time"
)

// SearchMode selects the retrieval strategy.
type SearchMode string

// Search modes.
const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeHybrid   SearchMode = "hybrid"
)

// ParseSearchMode validates a search mode string. Empty defaults to
// hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case "":
		return SearchModeHybrid, nil
	case SearchModeSemantic, SearchModeKeyword, SearchModeHybrid:
		return SearchMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown search mode %q", ErrInvalidInput, s)
	}
}

// QueryFilter restricts retrieval candidates. It is an immutable value
// object supplied by the caller; the query engine never relaxes or
// infers filters.
type QueryFilter struct {
	// ProjectIDs limits results to the given projects. Empty means no
	// project restriction.
	ProjectIDs []string

	// Contractor limits results to one contracting party.
	Contractor string

	// Status limits results to one contract status.
	Status string

	// DateFrom and DateTo bound the contract date, zero values are
	// open-ended.
	DateFrom time.Time
	DateTo   time.Time
}

// IsZero reports whether the filter imposes no restriction.
func (f QueryFilter) IsZero() bool {
	return len(f.ProjectIDs) == 0 && f.Contractor == "" && f.Status == "" &&
		f.DateFrom.IsZero() && f.DateTo.IsZero()
}

// Matches reports whether chunk metadata satisfies every restriction
// in the filter.
func (f QueryFilter) Matches(m FilterMetadata) bool {
	if len(f.ProjectIDs) > 0 {
		found := false
		for _, id := range f.ProjectIDs {
			if id == m.ProjectID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Contractor != "" && f.Contractor != m.Contractor {
		return false
	}
	if f.Status != "" && f.Status != m.Status {
		return false
	}
	if !f.DateFrom.IsZero() && m.Date.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && m.Date.After(f.DateTo) {
		return false
	}
	return true
}

// AnswerType classifies how an answer was produced.
type AnswerType string

// Answer types.
const (
	AnswerDirect      AnswerType = "direct"
	AnswerSynthesized AnswerType = "synthesized"
	AnswerNotFound    AnswerType = "not_found"
)

// Citation links an answer back to source text.
type Citation struct {
	// DocumentID is the cited document.
	DocumentID string

	// ChunkID is the cited chunk.
	ChunkID string

	// Offset is the cited character range in the document.
	Offset TextOffset

	// Snippet is a short excerpt of the cited text.
	Snippet string

	// DeepLink addresses the exact location in the document viewer.
	DeepLink string

	// Score is the retrieval relevance of the citation in [0,1].
	Score float64

	// FieldKeys are the structured fields attached to the cited chunk.
	FieldKeys []FieldKey

	// ObligationIDs are the obligations attached to the cited chunk.
	ObligationIDs []string
}

// Answer is a source-attributed response to a natural-language query.
type Answer struct {
	// Text is the answer text. For AnswerNotFound it is the explicit
	// "no matching data" response.
	Text string

	// Type classifies how the answer was produced.
	Type AnswerType

	// Confidence is the weighted average of contributing chunk scores,
	// capped at the lowest structured-field confidence used.
	Confidence float64

	// Sources are the citations backing the answer, empty for
	// AnswerNotFound.
	Sources []Citation

	// Related are follow-up query suggestions.
	Related []string
}

// DeepLink formats the canonical deep link for a document location.
func DeepLink(documentID string, offset TextOffset) string {
	return fmt.Sprintf("/documents/%s#offset=%d-%d", documentID, offset.Start, offset.End)
}
