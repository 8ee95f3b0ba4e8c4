package driving

import (
	"context"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// QueryRequest is one natural-language question over the index.
// Queries are stateless and safely retryable.
type QueryRequest struct {
	// Question is the natural-language query.
	Question string

	// Filter restricts candidate chunks. The caller must supply its
	// permitted filters; the engine never relaxes or infers them.
	Filter domain.QueryFilter

	// MaxResults caps returned sources. Zero means the configured
	// default.
	MaxResults int

	// Mode selects semantic, keyword or hybrid retrieval.
	Mode domain.SearchMode
}

// QueryResult is the attributed answer to one query.
type QueryResult struct {
	// Question echoes the original query.
	Question string

	// Answer is the source-attributed answer.
	Answer domain.Answer

	// SearchResultCount is the number of chunks that cleared the
	// retrieval threshold.
	SearchResultCount int

	// ProcessingTime is the wall-clock query duration.
	ProcessingTime time.Duration
}

// QueryService answers natural-language questions with attributed,
// source-linked responses.
type QueryService interface {
	// Query executes the retrieval pipeline and synthesises an answer.
	// Zero candidates after filtering yields an explicit "no matching
	// data" answer, never an error and never a fabricated one.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
}
