package driving

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// UpsertRequest (re)indexes one document.
type UpsertRequest struct {
	// DocumentID is the document to index.
	DocumentID string

	// Content is the document full text. When empty the stored
	// document's text is used.
	Content string

	// Meta is the denormalised filter metadata stamped on every chunk.
	Meta domain.FilterMetadata
}

// IndexStats summarises index contents.
type IndexStats struct {
	// Documents is the number of indexed documents.
	Documents int

	// Chunks is the number of retrievable chunks.
	Chunks int

	// Dimensions is the embedding vector size.
	Dimensions int
}

// IndexService owns the hybrid index. It is the sole writer; writes
// for a given document are strictly ordered and never overlap, and
// readers observe the last fully-committed snapshot.
type IndexService interface {
	// Upsert replaces the document's chunk set. Idempotent: prior
	// chunks owned by the document are removed before the new set is
	// inserted, so partial or duplicate chunks never accumulate.
	Upsert(ctx context.Context, req UpsertRequest) error

	// Delete removes every chunk owned by the document from both the
	// vector and keyword index.
	Delete(ctx context.Context, documentID string) error

	// Stats reports index contents.
	Stats(ctx context.Context) (IndexStats, error)

	// Close releases index resources.
	Close() error
}
