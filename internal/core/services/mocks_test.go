package services

import (
	"context"
	"sync/atomic"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockOCRProvider implements driven.OCRProvider for testing.
type mockOCRProvider struct {
	name     string
	pages    []domain.Page
	err      error
	calls    atomic.Int32
	lastData []byte
}

func (m *mockOCRProvider) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock-ocr"
}

func (m *mockOCRProvider) ExtractText(_ context.Context, data []byte, _ driven.OCRHints) ([]domain.Page, error) {
	m.calls.Add(1)
	m.lastData = data
	if m.err != nil {
		return nil, m.err
	}
	return m.pages, nil
}

func (m *mockOCRProvider) Ping(_ context.Context) error { return nil }
func (m *mockOCRProvider) Close() error                 { return nil }

// mockFieldExtractor implements driven.FieldExtractor and
// driven.ObligationExtractor for testing.
type mockFieldExtractor struct {
	name        string
	fields      []driven.FieldCandidate
	obligations []driven.ObligationCandidate
	fieldErr    error
	obErr       error
	calls       atomic.Int32
}

func (m *mockFieldExtractor) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock-extract"
}

func (m *mockFieldExtractor) ExtractFields(_ context.Context, _ string, _ []domain.FieldKey) ([]driven.FieldCandidate, error) {
	m.calls.Add(1)
	if m.fieldErr != nil {
		return nil, m.fieldErr
	}
	return m.fields, nil
}

func (m *mockFieldExtractor) ExtractObligations(_ context.Context, _ string, _ bool) ([]driven.ObligationCandidate, error) {
	m.calls.Add(1)
	if m.obErr != nil {
		return nil, m.obErr
	}
	return m.obligations, nil
}

func (m *mockFieldExtractor) Ping(_ context.Context) error { return nil }
func (m *mockFieldExtractor) Close() error                 { return nil }

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	dims      int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 4
}

func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockKeywordIndex implements driven.KeywordIndex for testing.
type mockKeywordIndex struct {
	hits      []driven.KeywordHit
	searchErr error
}

func (m *mockKeywordIndex) Index(_ context.Context, _ domain.IndexChunk) error { return nil }
func (m *mockKeywordIndex) DeleteDocument(_ context.Context, _ string) error   { return nil }

func (m *mockKeywordIndex) Search(_ context.Context, _ string, limit int, _ domain.QueryFilter) ([]driven.KeywordHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit < len(m.hits) {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

func (m *mockKeywordIndex) Close() error { return nil }

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	searchErr error
}

func (m *mockVectorIndex) Add(_ context.Context, _ domain.IndexChunk) error { return nil }
func (m *mockVectorIndex) DeleteDocument(_ context.Context, _ string) error { return nil }

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int, _ domain.QueryFilter) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockAnswerGenerator implements driven.AnswerGenerator for testing.
type mockAnswerGenerator struct {
	answer string
	err    error
}

func (m *mockAnswerGenerator) GenerateAnswer(_ context.Context, _ string, _ []string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

// --- Test helpers ---

// fastCall keeps retry backoff negligible in tests.
func fastCall() domain.ProviderCallSettings {
	return domain.ProviderCallSettings{
		MaxRetries:   2,
		RetryBackoff: 1,
	}
}

func testSettings() domain.RetrievalSettings {
	return domain.RetrievalSettings{
		SemanticWeight: 0.5,
		KeywordWeight:  0.5,
		MinScore:       0.25,
		TopK:           20,
		MaxResults:     10,
		NoEvidenceCap:  0.6,
	}
}

func staticSettings(s domain.RetrievalSettings) func() domain.RetrievalSettings {
	return func() domain.RetrievalSettings { return s }
}

// newTestRegistry builds a real Registry around mocks.
func newTestRegistry(extract *mockFieldExtractor, fallback *mockFieldExtractor, embed driven.EmbeddingService, answers driven.AnswerGenerator) *Registry {
	cfg := RegistryConfig{
		OCR:                   &mockOCRProvider{},
		Fields:                extract,
		Obligations:           extract,
		Embeddings:            embed,
		EmbeddingProviderName: "ollama",
		Answers:               answers,
	}
	if fallback != nil {
		cfg.FieldsFallback = fallback
		cfg.ObligationsFallback = fallback
	}
	if cfg.Embeddings == nil {
		cfg.Embeddings = &mockEmbeddingService{}
	}
	registry, err := NewRegistry(cfg)
	if err != nil {
		panic(err)
	}
	return registry
}
