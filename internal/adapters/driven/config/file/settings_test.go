package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauselens/clauselens/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	t.Setenv("CLAUSELENS_AZURE_OCR_ENDPOINT", "")
	t.Setenv("CLAUSELENS_AZURE_OCR_KEY", "")
	t.Setenv("CLAUSELENS_OPENAI_API_KEY", "")
	t.Setenv("CLAUSELENS_EMBEDDING_API_KEY", "")
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")

	s, err := Load(path)
	require.NoError(t, err)

	got := s.Current()
	assert.Equal(t, domain.DefaultSettings(), got)
	assert.Equal(t, path, s.Path())
}

func TestLoad_ParsesFileOverDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
listen_addr = ":9000"

[ocr]
provider = "azure"
azure_endpoint = "https://ocr.example.com"
azure_key = "file-key"

[extract]
provider = "rules"
fallback = "openai"
openai_api_key = "extract-key"

[embedding]
provider = "openai"
api_key = "embed-key"
model = "text-embedding-3-small"
dimensions = 256

[retrieval]
semantic_weight = 0.7
keyword_weight = 0.3
min_score = 0.0
top_k = 50
max_results = 5

[index]
chunk_size = 500
chunk_overlap = 50

[provider]
timeout_seconds = 10
max_retries = 0
retry_backoff_millis = 100
rate_per_minute = 0
`)

	s, err := Load(path)
	require.NoError(t, err)
	got := s.Current()

	assert.Equal(t, ":9000", got.ListenAddr)
	assert.Equal(t, domain.OCRProviderAzure, got.OCR.Provider)
	assert.Equal(t, "https://ocr.example.com", got.OCR.AzureEndpoint)
	assert.Equal(t, "file-key", got.OCR.AzureKey)
	assert.Equal(t, "openai", got.Extract.Fallback)
	assert.Equal(t, "embed-key", got.Embedding.APIKey)
	assert.Equal(t, 256, got.Embedding.Dimensions)

	assert.Equal(t, 0.7, got.Retrieval.SemanticWeight)
	assert.Equal(t, 0.3, got.Retrieval.KeywordWeight)
	// Pointer fields keep an explicit zero instead of falling back to
	// the default.
	assert.Zero(t, got.Retrieval.MinScore)
	assert.Equal(t, 50, got.Retrieval.TopK)
	assert.Equal(t, 5, got.Retrieval.MaxResults)

	assert.Equal(t, 500, got.Index.ChunkSize)
	assert.Equal(t, 50, got.Index.ChunkOverlap)

	assert.Equal(t, 10*time.Second, got.Provider.Timeout)
	assert.Zero(t, got.Provider.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, got.Provider.RetryBackoff)
	assert.Zero(t, got.Provider.RatePerMinute)
}

func TestLoad_AbsentSectionsKeepDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
[retrieval]
top_k = 30
`)

	s, err := Load(path)
	require.NoError(t, err)
	got := s.Current()
	defaults := domain.DefaultSettings()

	assert.Equal(t, 30, got.Retrieval.TopK)
	assert.Equal(t, defaults.Retrieval.MinScore, got.Retrieval.MinScore)
	assert.Equal(t, defaults.OCR.Provider, got.OCR.Provider)
	assert.Equal(t, defaults.Provider.MaxRetries, got.Provider.MaxRetries)
	assert.Equal(t, defaults.ListenAddr, got.ListenAddr)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("CLAUSELENS_AZURE_OCR_ENDPOINT", "https://env.example.com")
	t.Setenv("CLAUSELENS_AZURE_OCR_KEY", "env-ocr-key")
	t.Setenv("CLAUSELENS_OPENAI_API_KEY", "env-openai-key")

	path := writeConfig(t, `
[ocr]
provider = "azure"
azure_endpoint = "https://file.example.com"
azure_key = "file-key"

[extract]
provider = "openai"
openai_api_key = "file-key"
`)

	s, err := Load(path)
	require.NoError(t, err)
	got := s.Current()

	assert.Equal(t, "https://env.example.com", got.OCR.AzureEndpoint)
	assert.Equal(t, "env-ocr-key", got.OCR.AzureKey)
	assert.Equal(t, "env-openai-key", got.Extract.OpenAIAPIKey)
}

func TestLoad_OpenAIKeySharedWithEmbedding(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("CLAUSELENS_OPENAI_API_KEY", "shared-key")

	path := writeConfig(t, `
[extract]
provider = "openai"

[embedding]
provider = "openai"
`)

	s, err := Load(path)
	require.NoError(t, err)
	got := s.Current()

	assert.Equal(t, "shared-key", got.Extract.OpenAIAPIKey)
	assert.Equal(t, "shared-key", got.Embedding.APIKey)
}

func TestLoad_DedicatedEmbeddingKeyWins(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("CLAUSELENS_OPENAI_API_KEY", "shared-key")
	t.Setenv("CLAUSELENS_EMBEDDING_API_KEY", "embed-only-key")

	path := writeConfig(t, `
[extract]
provider = "openai"

[embedding]
provider = "openai"
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "embed-only-key", s.Current().Embedding.APIKey)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	clearEnvOverrides(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown OCR provider", "[ocr]\nprovider = \"textract\"\n"},
		{"azure without credentials", "[ocr]\nprovider = \"azure\"\n"},
		{"openai extract without key", "[extract]\nprovider = \"openai\"\n"},
		{"openai embedding without key", "[embedding]\nprovider = \"openai\"\n"},
		{"negative weight", "[retrieval]\nsemantic_weight = -0.1\n"},
		{"both weights zero", "[retrieval]\nsemantic_weight = 0.0\nkeyword_weight = 0.0\n"},
		{"min score out of range", "[retrieval]\nmin_score = 1.5\n"},
		{"overlap at window size", "[index]\nchunk_size = 100\nchunk_overlap = 100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, "[retrieval\ntop_k = 30\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing settings file")
}

func TestSettings_Reload_SwapsRetrievalOnly(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
[retrieval]
min_score = 0.4

[provider]
timeout_seconds = 10
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, s.Retrieval().MinScore)

	require.NoError(t, os.WriteFile(path, []byte(`
[retrieval]
min_score = 0.1

[provider]
timeout_seconds = 99
`), 0600))
	s.reload()

	assert.Equal(t, 0.1, s.Retrieval().MinScore)
	// Provider settings stay as loaded until restart.
	assert.Equal(t, 10*time.Second, s.Current().Provider.Timeout)
}

func TestSettings_Reload_KeepsPreviousOnBadFile(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, "[retrieval]\nmin_score = 0.4\n")

	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[retrieval]\nmin_score = 3.0\n"), 0600))
	s.reload()

	assert.Equal(t, 0.4, s.Retrieval().MinScore)
}

func TestSettings_Watch_ReloadsOnWrite(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, "[retrieval]\nmin_score = 0.4\n")

	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Watch())
	defer s.Close()

	require.NoError(t, os.WriteFile(path, []byte("[retrieval]\nmin_score = 0.1\n"), 0600))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Retrieval().MinScore == 0.1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("retrieval settings not reloaded, min score still %v", s.Retrieval().MinScore)
}

func TestSettings_Close_Idempotent(t *testing.T) {
	clearEnvOverrides(t)
	s, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.NoError(t, s.Watch())

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
