package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// Ingestor converts raw document bytes into stored documents through
// the configured OCR provider.
type Ingestor struct {
	registry driving.ProviderRegistry
	docs     driven.DocumentStore
	indexer  driving.IndexService
	policy   *callPolicy
}

// NewIngestor builds the document service. The indexer is used by
// Delete to keep the search indexes in step with storage.
func NewIngestor(
	registry driving.ProviderRegistry,
	docs driven.DocumentStore,
	indexer driving.IndexService,
	call domain.ProviderCallSettings,
) *Ingestor {
	return &Ingestor{
		registry: registry,
		docs:     docs,
		indexer:  indexer,
		policy:   newCallPolicy(call),
	}
}

var _ driving.DocumentService = (*Ingestor)(nil)

// Ingest runs OCR on the raw bytes and stores the resulting document.
// The fallback OCR provider is tried only on transient failure of the
// primary; an unreadable document fails on the first attempt.
func (g *Ingestor) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: document bytes are required", domain.ErrInvalidInput)
	}

	pages, err := g.extractPages(ctx, req.Data, req.Hints)
	if err != nil {
		return nil, err
	}

	id := req.DocumentID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        id,
		SourceKey: req.SourceKey,
		Pages:     pages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, p := range pages {
		if p.Language != "" {
			doc.Language = p.Language
			break
		}
	}
	if doc.FullText() == "" {
		return nil, fmt.Errorf("%w: no text recognised in %q", domain.ErrDocumentUnreadable, req.SourceKey)
	}

	if err := g.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	logger.Info("ingested document %s (%d pages)", doc.ID, len(doc.Pages))
	return doc, nil
}

// Get retrieves a stored document.
func (g *Ingestor) Get(ctx context.Context, id string) (*domain.Document, error) {
	return g.docs.GetDocument(ctx, id)
}

// Delete removes the document from storage and both search indexes.
func (g *Ingestor) Delete(ctx context.Context, id string) error {
	if err := g.indexer.Delete(ctx, id); err != nil {
		return err
	}
	return g.docs.DeleteDocument(ctx, id)
}

// List returns the stored document IDs.
func (g *Ingestor) List(ctx context.Context) ([]string, error) {
	return g.docs.ListDocuments(ctx)
}

func (g *Ingestor) extractPages(ctx context.Context, data []byte, hints driven.OCRHints) ([]domain.Page, error) {
	primary := g.registry.OCR()

	var pages []domain.Page
	err := g.policy.do(ctx, "ocr ("+primary.Name()+")", func(ctx context.Context) error {
		var err error
		pages, err = primary.ExtractText(ctx, data, hints)
		return err
	})
	if err == nil {
		return pages, nil
	}

	fallback := g.registry.OCRFallback()
	if fallback == nil || !errors.Is(err, domain.ErrProviderUnavailable) {
		return nil, err
	}
	logger.Warn("OCR provider %s unavailable, falling back to %s: %v", primary.Name(), fallback.Name(), err)

	err = g.policy.do(ctx, "ocr ("+fallback.Name()+")", func(ctx context.Context) error {
		var err error
		pages, err = fallback.ExtractText(ctx, data, hints)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}
