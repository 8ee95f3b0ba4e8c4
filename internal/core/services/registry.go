package services

import (
	"context"
	"errors"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

// Registry holds the provider set selected at startup. Selection
// happens exactly once when the registry is built; requests never
// change it. Fallbacks, when configured, are consulted only on
// transient failure of the primary.
type Registry struct {
	ocr         driven.OCRProvider
	ocrFallback driven.OCRProvider

	fields         driven.FieldExtractor
	fieldsFallback driven.FieldExtractor

	obligations         driven.ObligationExtractor
	obligationsFallback driven.ObligationExtractor

	embeddings     driven.EmbeddingService
	embeddingsName string
	answers        driven.AnswerGenerator
}

// RegistryConfig names the providers the registry serves. OCR, Fields,
// Obligations and Embeddings are required; everything else is optional.
type RegistryConfig struct {
	OCR         driven.OCRProvider
	OCRFallback driven.OCRProvider

	Fields         driven.FieldExtractor
	FieldsFallback driven.FieldExtractor

	Obligations         driven.ObligationExtractor
	ObligationsFallback driven.ObligationExtractor

	Embeddings driven.EmbeddingService

	// EmbeddingProviderName is the selected embedding provider name
	// ("openai" or "ollama"), reported by Describe.
	EmbeddingProviderName string

	Answers driven.AnswerGenerator
}

// NewRegistry builds the provider registry from an explicit selection.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.OCR == nil || cfg.Fields == nil || cfg.Obligations == nil || cfg.Embeddings == nil {
		return nil, errors.New("registry requires OCR, field, obligation and embedding providers")
	}
	return &Registry{
		ocr:                 cfg.OCR,
		ocrFallback:         cfg.OCRFallback,
		fields:              cfg.Fields,
		fieldsFallback:      cfg.FieldsFallback,
		obligations:         cfg.Obligations,
		obligationsFallback: cfg.ObligationsFallback,
		embeddings:          cfg.Embeddings,
		embeddingsName:      cfg.EmbeddingProviderName,
		answers:             cfg.Answers,
	}, nil
}

var _ driving.ProviderRegistry = (*Registry)(nil)

func (r *Registry) OCR() driven.OCRProvider                         { return r.ocr }
func (r *Registry) OCRFallback() driven.OCRProvider                 { return r.ocrFallback }
func (r *Registry) Fields() driven.FieldExtractor                   { return r.fields }
func (r *Registry) FieldsFallback() driven.FieldExtractor           { return r.fieldsFallback }
func (r *Registry) Obligations() driven.ObligationExtractor         { return r.obligations }
func (r *Registry) ObligationsFallback() driven.ObligationExtractor { return r.obligationsFallback }
func (r *Registry) Embeddings() driven.EmbeddingService             { return r.embeddings }
func (r *Registry) Answers() driven.AnswerGenerator                 { return r.answers }

// Describe reports the active selection and the compiled-in set.
func (r *Registry) Describe() driving.ProvidersInfo {
	info := driving.ProvidersInfo{
		OCRProvider:       r.ocr.Name(),
		ExtractProvider:   r.fields.Name(),
		EmbeddingProvider: r.embeddingsName,
		Available: map[string][]string{
			"ocr":       {domain.OCRProviderTesseract, domain.OCRProviderAzure},
			"extract":   {domain.ExtractProviderRules, domain.ExtractProviderOpenAI},
			"embedding": {domain.EmbeddingProviderOpenAI, domain.EmbeddingProviderOllama},
		},
		Features: map[string]bool{
			"generative_answers":  r.answers != nil,
			"ocr_fallback":        r.ocrFallback != nil,
			"extraction_fallback": r.fieldsFallback != nil || r.obligationsFallback != nil,
		},
	}
	return info
}

// Ping checks every configured provider and reports per-provider
// results, nil entries for healthy providers.
func (r *Registry) Ping(ctx context.Context) map[string]error {
	results := map[string]error{
		"ocr":       r.ocr.Ping(ctx),
		"extract":   r.fields.Ping(ctx),
		"embedding": r.embeddings.Ping(ctx),
	}
	if r.ocrFallback != nil {
		results["ocr_fallback"] = r.ocrFallback.Ping(ctx)
	}
	if r.fieldsFallback != nil {
		results["extract_fallback"] = r.fieldsFallback.Ping(ctx)
	}
	return results
}

// Close releases every provider, returning the first error seen.
func (r *Registry) Close() error {
	var errs []error
	errs = append(errs, r.ocr.Close(), r.fields.Close(), r.obligations.Close(), r.embeddings.Close())
	if r.ocrFallback != nil {
		errs = append(errs, r.ocrFallback.Close())
	}
	if r.fieldsFallback != nil {
		errs = append(errs, r.fieldsFallback.Close())
	}
	if r.obligationsFallback != nil {
		errs = append(errs, r.obligationsFallback.Close())
	}
	return errors.Join(errs...)
}
