package driving

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// IngestRequest turns raw document bytes into a stored document.
type IngestRequest struct {
	// DocumentID is the identifier to store the document under. Empty
	// generates one.
	DocumentID string

	// SourceKey is the caller's reference for the document, typically a
	// file name or platform object key.
	SourceKey string

	// Data is the raw document bytes.
	Data []byte

	// Hints guide OCR.
	Hints driven.OCRHints
}

// DocumentService runs OCR and manages stored documents.
type DocumentService interface {
	// Ingest extracts text from raw bytes and stores the resulting
	// document. Total OCR failure surfaces domain.ErrDocumentUnreadable;
	// a transient provider outage after fallback surfaces
	// domain.ErrProviderUnavailable.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// Get retrieves a stored document.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes a document, its chunks and index entries.
	Delete(ctx context.Context, id string) error

	// List returns the stored document IDs.
	List(ctx context.Context) ([]string, error)
}
