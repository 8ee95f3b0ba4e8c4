package driven

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// KeywordHit is a lexical search result.
type KeywordHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the lexical relevance score, normalised to [0,1] by the
	// query engine before merging.
	Score float64
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity in [0,1].
	Similarity float64
}

// KeywordIndex provides lexical search over chunk tokens. The filter
// is applied before ranking so top-K is computed over the restricted
// candidate set only.
type KeywordIndex interface {
	// Index adds or replaces a chunk.
	Index(ctx context.Context, chunk domain.IndexChunk) error

	// DeleteDocument removes every chunk owned by the document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search returns the top matching chunks within the filtered set.
	Search(ctx context.Context, query string, limit int, filter domain.QueryFilter) ([]KeywordHit, error)

	// Close releases resources.
	Close() error
}

// VectorIndex provides semantic similarity search over chunk
// embeddings. The filter is applied before ranking, like KeywordIndex.
type VectorIndex interface {
	// Add inserts or replaces a chunk's embedding.
	Add(ctx context.Context, chunk domain.IndexChunk) error

	// DeleteDocument removes every chunk owned by the document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search finds the k nearest chunks within the filtered set.
	Search(ctx context.Context, embedding []float32, k int, filter domain.QueryFilter) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}
