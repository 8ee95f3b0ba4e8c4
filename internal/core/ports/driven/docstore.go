package driven

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// DocumentStore persists documents and index chunks.
// Backed by SQLite; an in-memory implementation exists for tests.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all stored document IDs.
	ListDocuments(ctx context.Context) ([]string, error)

	// ReplaceChunks atomically replaces every chunk owned by the
	// document with the given set. The old set never coexists with the
	// new one.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.IndexChunk) error

	// GetChunks retrieves all chunks for a document in position order.
	GetChunks(ctx context.Context, documentID string) ([]domain.IndexChunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.IndexChunk, error)
}
