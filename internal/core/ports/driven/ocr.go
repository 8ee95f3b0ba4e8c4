package driven

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// OCRHints guide text extraction. Providers treat every hint as
// best-effort.
type OCRHints struct {
	// Languages are the expected document languages (ISO 639 codes).
	Languages []string

	// ExtractLayout requests paragraph/line layout blocks.
	ExtractLayout bool

	// ExtractTables requests table structure recognition.
	ExtractTables bool
}

// OCRProvider normalises raw document bytes into the provider-agnostic
// page model. All providers must yield structurally identical output so
// downstream stages stay provider-agnostic.
//
// ExtractText returns best-effort text when individual pages fail. On
// total failure it returns domain.ErrDocumentUnreadable for a document
// that can never be processed, or domain.ErrProviderUnavailable for a
// transient provider outage.
type OCRProvider interface {
	// Name returns the provider name.
	Name() string

	// ExtractText converts document bytes to ordered pages.
	ExtractText(ctx context.Context, data []byte, hints OCRHints) ([]domain.Page, error)

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
