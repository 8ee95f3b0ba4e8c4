package driving

import (
	"context"

	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// ProvidersInfo describes the active provider selection for the
// GET /providers endpoint.
type ProvidersInfo struct {
	// OCRProvider is the active OCR provider name.
	OCRProvider string `json:"ocr_provider"`

	// ExtractProvider is the active extraction provider name.
	ExtractProvider string `json:"extract_provider"`

	// EmbeddingProvider is the active embedding provider name.
	EmbeddingProvider string `json:"embedding_provider"`

	// Available lists the compiled-in providers per capability.
	Available map[string][]string `json:"available_providers"`

	// Features reports optional capability availability.
	Features map[string]bool `json:"features"`
}

// ProviderRegistry exposes the provider set selected at startup.
// It is read-mostly and safe for unsynchronised concurrent reads.
type ProviderRegistry interface {
	// OCR returns the primary OCR provider.
	OCR() driven.OCRProvider

	// OCRFallback returns the alternate OCR provider, nil if none.
	OCRFallback() driven.OCRProvider

	// Fields returns the primary field extractor.
	Fields() driven.FieldExtractor

	// FieldsFallback returns the alternate field extractor, nil if
	// none.
	FieldsFallback() driven.FieldExtractor

	// Obligations returns the primary obligation extractor.
	Obligations() driven.ObligationExtractor

	// ObligationsFallback returns the alternate obligation extractor,
	// nil if none.
	ObligationsFallback() driven.ObligationExtractor

	// Embeddings returns the embedding service.
	Embeddings() driven.EmbeddingService

	// Answers returns the answer generator, nil when no generative
	// provider is configured.
	Answers() driven.AnswerGenerator

	// Describe reports the active selection.
	Describe() ProvidersInfo

	// Ping checks connectivity of every configured provider.
	Ping(ctx context.Context) map[string]error

	// Close releases every provider.
	Close() error
}
