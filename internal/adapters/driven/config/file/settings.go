// Package file loads application settings from a TOML file, applies
// environment overrides for credentials, and hot-reloads the retrieval
// tunables when the file changes on disk.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/logger"
)

// tomlSettings mirrors domain.AppSettings with TOML tags. Durations
// are expressed in seconds and rates per minute, matching how
// operators think about provider budgets.
type tomlSettings struct {
	ListenAddr string `toml:"listen_addr"`

	OCR struct {
		Provider       string `toml:"provider"`
		Fallback       string `toml:"fallback"`
		AzureEndpoint  string `toml:"azure_endpoint"`
		AzureKey       string `toml:"azure_key"`
		TessdataPrefix string `toml:"tessdata_prefix"`
	} `toml:"ocr"`

	Extract struct {
		Provider      string `toml:"provider"`
		Fallback      string `toml:"fallback"`
		OpenAIAPIKey  string `toml:"openai_api_key"`
		OpenAIBaseURL string `toml:"openai_base_url"`
		OpenAIModel   string `toml:"openai_model"`
	} `toml:"extract"`

	Embedding struct {
		Provider   string `toml:"provider"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"`
		Model      string `toml:"model"`
		Dimensions int    `toml:"dimensions"`
	} `toml:"embedding"`

	Retrieval struct {
		SemanticWeight *float64 `toml:"semantic_weight"`
		KeywordWeight  *float64 `toml:"keyword_weight"`
		MinScore       *float64 `toml:"min_score"`
		TopK           int      `toml:"top_k"`
		MaxResults     int      `toml:"max_results"`
		NoEvidenceCap  *float64 `toml:"no_evidence_cap"`
	} `toml:"retrieval"`

	Index struct {
		DataDir      string `toml:"data_dir"`
		ChunkSize    int    `toml:"chunk_size"`
		ChunkOverlap int    `toml:"chunk_overlap"`
	} `toml:"index"`

	Provider struct {
		TimeoutSeconds     int  `toml:"timeout_seconds"`
		MaxRetries         *int `toml:"max_retries"`
		RetryBackoffMillis int  `toml:"retry_backoff_millis"`
		RatePerMinute      *int `toml:"rate_per_minute"`
	} `toml:"provider"`
}

// Settings loads domain.AppSettings from a TOML file and serves the
// current value under a read lock. Watch re-reads the file on change
// and swaps the retrieval tunables; provider selection and credentials
// require a restart.
type Settings struct {
	mu       sync.RWMutex
	path     string
	current  domain.AppSettings
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// Load reads the settings file at path. A missing file yields the
// defaults. Environment variables override credentials so secrets can
// stay out of the file:
//
//	CLAUSELENS_AZURE_OCR_KEY, CLAUSELENS_AZURE_OCR_ENDPOINT,
//	CLAUSELENS_OPENAI_API_KEY, CLAUSELENS_EMBEDDING_API_KEY
//
// If path is empty, defaults to ~/.clauselens/config.toml.
func Load(path string) (*Settings, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".clauselens", "config.toml")
	}

	s := &Settings{path: path, done: make(chan struct{})}
	settings, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current = settings
	return s, nil
}

// Current returns a snapshot of the full settings.
func (s *Settings) Current() domain.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Retrieval returns the current retrieval tunables. Services hold this
// method as a function value so hot reloads take effect on the next
// request.
func (s *Settings) Retrieval() domain.RetrievalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Retrieval
}

// Path returns the settings file path.
func (s *Settings) Path() string {
	return s.path
}

// Watch starts watching the settings file for changes. Only the
// retrieval tunables are swapped on reload; a change to provider
// selection or credentials logs a warning and is otherwise ignored
// until restart.
func (s *Settings) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating settings watcher: %w", err)
	}
	// Watch the directory: editors replace the file on save, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching settings directory: %w", err)
	}
	s.watcher = watcher

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, s.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *Settings) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

func (s *Settings) reload() {
	settings, err := s.read()
	if err != nil {
		logger.Warn("settings reload failed, keeping previous values: %v", err)
		return
	}

	s.mu.Lock()
	previous := s.current
	s.current.Retrieval = settings.Retrieval
	s.mu.Unlock()

	if previous.OCR != settings.OCR || previous.Extract != settings.Extract ||
		previous.Embedding != settings.Embedding {
		logger.Warn("provider settings changed on disk; restart to apply")
	}
	logger.Info("retrieval settings reloaded from %s", s.path)
}

// read loads, overrides and validates the settings file.
func (s *Settings) read() (domain.AppSettings, error) {
	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&settings)
			return settings, settings.Validate()
		}
		return domain.AppSettings{}, fmt.Errorf("reading settings file: %w", err)
	}

	var raw tomlSettings
	if err := toml.Unmarshal(data, &raw); err != nil {
		return domain.AppSettings{}, fmt.Errorf("parsing settings file: %w", err)
	}
	apply(&settings, raw)
	applyEnvOverrides(&settings)

	if err := settings.Validate(); err != nil {
		return domain.AppSettings{}, err
	}
	return settings, nil
}

// apply copies non-zero file values over the defaults. Pointer fields
// distinguish "absent" from an explicit zero.
func apply(s *domain.AppSettings, raw tomlSettings) {
	setString(&s.ListenAddr, raw.ListenAddr)

	setString(&s.OCR.Provider, raw.OCR.Provider)
	setString(&s.OCR.Fallback, raw.OCR.Fallback)
	setString(&s.OCR.AzureEndpoint, raw.OCR.AzureEndpoint)
	setString(&s.OCR.AzureKey, raw.OCR.AzureKey)
	setString(&s.OCR.TessdataPrefix, raw.OCR.TessdataPrefix)

	setString(&s.Extract.Provider, raw.Extract.Provider)
	setString(&s.Extract.Fallback, raw.Extract.Fallback)
	setString(&s.Extract.OpenAIAPIKey, raw.Extract.OpenAIAPIKey)
	setString(&s.Extract.OpenAIBaseURL, raw.Extract.OpenAIBaseURL)
	setString(&s.Extract.OpenAIModel, raw.Extract.OpenAIModel)

	setString(&s.Embedding.Provider, raw.Embedding.Provider)
	setString(&s.Embedding.APIKey, raw.Embedding.APIKey)
	setString(&s.Embedding.BaseURL, raw.Embedding.BaseURL)
	setString(&s.Embedding.Model, raw.Embedding.Model)
	if raw.Embedding.Dimensions > 0 {
		s.Embedding.Dimensions = raw.Embedding.Dimensions
	}

	if raw.Retrieval.SemanticWeight != nil {
		s.Retrieval.SemanticWeight = *raw.Retrieval.SemanticWeight
	}
	if raw.Retrieval.KeywordWeight != nil {
		s.Retrieval.KeywordWeight = *raw.Retrieval.KeywordWeight
	}
	if raw.Retrieval.MinScore != nil {
		s.Retrieval.MinScore = *raw.Retrieval.MinScore
	}
	if raw.Retrieval.TopK > 0 {
		s.Retrieval.TopK = raw.Retrieval.TopK
	}
	if raw.Retrieval.MaxResults > 0 {
		s.Retrieval.MaxResults = raw.Retrieval.MaxResults
	}
	if raw.Retrieval.NoEvidenceCap != nil {
		s.Retrieval.NoEvidenceCap = *raw.Retrieval.NoEvidenceCap
	}

	setString(&s.Index.DataDir, raw.Index.DataDir)
	if raw.Index.ChunkSize > 0 {
		s.Index.ChunkSize = raw.Index.ChunkSize
	}
	if raw.Index.ChunkOverlap > 0 {
		s.Index.ChunkOverlap = raw.Index.ChunkOverlap
	}

	if raw.Provider.TimeoutSeconds > 0 {
		s.Provider.Timeout = time.Duration(raw.Provider.TimeoutSeconds) * time.Second
	}
	if raw.Provider.MaxRetries != nil {
		s.Provider.MaxRetries = *raw.Provider.MaxRetries
	}
	if raw.Provider.RetryBackoffMillis > 0 {
		s.Provider.RetryBackoff = time.Duration(raw.Provider.RetryBackoffMillis) * time.Millisecond
	}
	if raw.Provider.RatePerMinute != nil {
		s.Provider.RatePerMinute = *raw.Provider.RatePerMinute
	}
}

func applyEnvOverrides(s *domain.AppSettings) {
	if v := os.Getenv("CLAUSELENS_AZURE_OCR_ENDPOINT"); v != "" {
		s.OCR.AzureEndpoint = v
	}
	if v := os.Getenv("CLAUSELENS_AZURE_OCR_KEY"); v != "" {
		s.OCR.AzureKey = v
	}
	if v := os.Getenv("CLAUSELENS_OPENAI_API_KEY"); v != "" {
		s.Extract.OpenAIAPIKey = v
		if s.Embedding.Provider == domain.EmbeddingProviderOpenAI && s.Embedding.APIKey == "" {
			s.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("CLAUSELENS_EMBEDDING_API_KEY"); v != "" {
		s.Embedding.APIKey = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
