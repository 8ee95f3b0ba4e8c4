package domain

import (
	"fmt"
	"time"
)

// Provider names per capability. The set is fixed at compile time;
// configuration only selects among these.
const (
	OCRProviderTesseract = "tesseract"
	OCRProviderAzure     = "azure"

	ExtractProviderRules  = "rules"
	ExtractProviderOpenAI = "openai"

	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderOllama = "ollama"
)

// OCRSettings selects and configures the OCR provider.
type OCRSettings struct {
	// Provider is "tesseract" (local) or "azure" (cloud).
	Provider string

	// Fallback is an optional alternate provider tried on transient
	// failure of the primary.
	Fallback string

	// AzureEndpoint and AzureKey configure the Azure Document
	// Intelligence provider.
	AzureEndpoint string
	AzureKey      string

	// TessdataPrefix overrides the Tesseract data path.
	TessdataPrefix string
}

// ExtractSettings selects and configures the extraction provider.
type ExtractSettings struct {
	// Provider is "rules" (local) or "openai" (cloud).
	Provider string

	// Fallback is an optional alternate provider tried on transient
	// failure of the primary.
	Fallback string

	// OpenAIAPIKey, OpenAIBaseURL and OpenAIModel configure the OpenAI
	// provider.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// EmbeddingSettings selects and configures the embedding provider.
type EmbeddingSettings struct {
	// Provider is "openai" or "ollama".
	Provider string

	// APIKey is required for OpenAI.
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions overrides the model's default vector size.
	Dimensions int
}

// RetrievalSettings holds the tunable retrieval constants. These are
// configuration, not hard-coded: they may be hot-reloaded.
type RetrievalSettings struct {
	// SemanticWeight and KeywordWeight combine normalised scores in
	// hybrid mode. Defaults are equal weight.
	SemanticWeight float64
	KeywordWeight  float64

	// MinScore is the retrieval threshold; results below it are
	// dropped, never padded.
	MinScore float64

	// TopK is the per-strategy candidate count before merging.
	TopK int

	// MaxResults is the default result cap after merging.
	MaxResults int

	// NoEvidenceCap bounds the confidence of a field with no supporting
	// text offset.
	NoEvidenceCap float64
}

// IndexSettings configures chunking and index storage.
type IndexSettings struct {
	// DataDir is the index storage location.
	DataDir string

	// ChunkSize is the chunk window in characters, sized to the
	// embedding model's input limit.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int
}

// ProviderCallSettings bounds every provider call.
type ProviderCallSettings struct {
	// Timeout is the per-call timeout.
	Timeout time.Duration

	// MaxRetries is the bounded retry count before surfacing
	// ErrProviderUnavailable.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration

	// RatePerMinute caps provider calls per minute.
	RatePerMinute int
}

// AppSettings aggregates the full configuration surface.
type AppSettings struct {
	OCR       OCRSettings
	Extract   ExtractSettings
	Embedding EmbeddingSettings
	Retrieval RetrievalSettings
	Index     IndexSettings
	Provider  ProviderCallSettings

	// ListenAddr is the HTTP API listen address.
	ListenAddr string
}

// DefaultSettings returns the settings used when no configuration file
// is present.
func DefaultSettings() AppSettings {
	return AppSettings{
		OCR:     OCRSettings{Provider: OCRProviderTesseract},
		Extract: ExtractSettings{Provider: ExtractProviderRules},
		Embedding: EmbeddingSettings{
			Provider: EmbeddingProviderOllama,
		},
		Retrieval: RetrievalSettings{
			SemanticWeight: 0.5,
			KeywordWeight:  0.5,
			MinScore:       0.25,
			TopK:           20,
			MaxResults:     10,
			NoEvidenceCap:  0.6,
		},
		Index: IndexSettings{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Provider: ProviderCallSettings{
			Timeout:       60 * time.Second,
			MaxRetries:    3,
			RetryBackoff:  500 * time.Millisecond,
			RatePerMinute: 60,
		},
		ListenAddr: ":8000",
	}
}

// Validate checks the settings for internal consistency.
func (s AppSettings) Validate() error {
	switch s.OCR.Provider {
	case OCRProviderTesseract:
	case OCRProviderAzure:
		if s.OCR.AzureEndpoint == "" || s.OCR.AzureKey == "" {
			return fmt.Errorf("%w: azure OCR provider requires endpoint and key", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown OCR provider %q", ErrInvalidInput, s.OCR.Provider)
	}

	switch s.Extract.Provider {
	case ExtractProviderRules:
	case ExtractProviderOpenAI:
		if s.Extract.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: openai extraction provider requires an API key", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown extraction provider %q", ErrInvalidInput, s.Extract.Provider)
	}

	switch s.Embedding.Provider {
	case EmbeddingProviderOllama:
	case EmbeddingProviderOpenAI:
		if s.Embedding.APIKey == "" {
			return fmt.Errorf("%w: openai embedding provider requires an API key", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidInput, s.Embedding.Provider)
	}

	r := s.Retrieval
	if r.SemanticWeight < 0 || r.KeywordWeight < 0 || r.SemanticWeight+r.KeywordWeight == 0 {
		return fmt.Errorf("%w: hybrid weights must be non-negative and not both zero", ErrInvalidInput)
	}
	if r.MinScore < 0 || r.MinScore > 1 {
		return fmt.Errorf("%w: min score must be in [0,1]", ErrInvalidInput)
	}
	if r.NoEvidenceCap < 0 || r.NoEvidenceCap > 1 {
		return fmt.Errorf("%w: no-evidence cap must be in [0,1]", ErrInvalidInput)
	}
	if s.Index.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	}
	if s.Index.ChunkOverlap < 0 || s.Index.ChunkOverlap >= s.Index.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", ErrInvalidInput)
	}
	return nil
}
