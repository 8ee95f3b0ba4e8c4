// Command clauselens is the contract document intelligence service:
// OCR ingestion, metadata and obligation extraction, hybrid retrieval
// and source-attributed question answering.
package main

import (
	"context"
	"fmt"
	"os"

	configfile "github.com/clauselens/clauselens/internal/adapters/driven/config/file"
	ollamaembed "github.com/clauselens/clauselens/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/clauselens/clauselens/internal/adapters/driven/embedding/openai"
	openaiextract "github.com/clauselens/clauselens/internal/adapters/driven/extract/openai"
	"github.com/clauselens/clauselens/internal/adapters/driven/extract/rules"
	indexmem "github.com/clauselens/clauselens/internal/adapters/driven/index/memory"
	"github.com/clauselens/clauselens/internal/adapters/driven/ocr/azure"
	"github.com/clauselens/clauselens/internal/adapters/driven/ocr/tesseract"
	"github.com/clauselens/clauselens/internal/adapters/driven/storage/sqlite"
	"github.com/clauselens/clauselens/internal/adapters/driving/cli"
	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/services"
	"github.com/clauselens/clauselens/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap builds the full service graph from the settings file.
func bootstrap(configPath string) (cli.Wiring, error) {
	cfg, err := configfile.Load(configPath)
	if err != nil {
		return cli.Wiring{}, fmt.Errorf("loading settings: %w", err)
	}
	if err := cfg.Watch(); err != nil {
		logger.Warn("settings hot reload disabled: %v", err)
	}
	settings := cfg.Current()

	registry, err := buildRegistry(settings)
	if err != nil {
		return cli.Wiring{}, err
	}

	store, err := sqlite.NewStore(settings.Index.DataDir)
	if err != nil {
		return cli.Wiring{}, fmt.Errorf("opening storage: %w", err)
	}
	docs := store.DocumentStore()
	ledger := store.LedgerStore()

	keyword := indexmem.NewKeywordIndex()
	vector := indexmem.NewVectorIndex()

	indexer := services.NewIndexer(docs, keyword, vector,
		registry.Embeddings(), ledger, settings.Index, settings.Provider)
	if err := indexer.Rebuild(context.Background()); err != nil {
		return cli.Wiring{}, fmt.Errorf("rebuilding index: %w", err)
	}

	return cli.Wiring{
		Extraction: services.NewExtraction(registry, docs, ledger, settings.Provider, cfg.Retrieval),
		Query:      services.NewQuery(registry, docs, ledger, keyword, vector, settings.Provider, cfg.Retrieval),
		Correction: services.NewLedger(ledger),
		Index:      indexer,
		Documents:  services.NewIngestor(registry, docs, indexer, settings.Provider),
		Jobs:       services.NewJobRunner(),
		Registry:   registry,
		ListenAddr: settings.ListenAddr,
		Version:    version,
	}, nil
}

// buildRegistry constructs the provider set the settings select.
func buildRegistry(settings domain.AppSettings) (*services.Registry, error) {
	ocr, err := buildOCR(settings.OCR, settings.OCR.Provider)
	if err != nil {
		return nil, err
	}
	var ocrFallback driven.OCRProvider
	if settings.OCR.Fallback != "" && settings.OCR.Fallback != settings.OCR.Provider {
		if ocrFallback, err = buildOCR(settings.OCR, settings.OCR.Fallback); err != nil {
			return nil, err
		}
	}

	cfg := services.RegistryConfig{
		OCR:                   ocr,
		OCRFallback:           ocrFallback,
		EmbeddingProviderName: settings.Embedding.Provider,
	}

	rulesExtractor := rules.New()
	var generative *openaiextract.Extractor
	if settings.Extract.Provider == domain.ExtractProviderOpenAI ||
		settings.Extract.Fallback == domain.ExtractProviderOpenAI {
		generative, err = openaiextract.New(openaiextract.Config{
			APIKey:  settings.Extract.OpenAIAPIKey,
			BaseURL: settings.Extract.OpenAIBaseURL,
			Model:   settings.Extract.OpenAIModel,
		})
		if err != nil {
			return nil, fmt.Errorf("building openai extractor: %w", err)
		}
		cfg.Answers = generative
	}

	if settings.Extract.Provider == domain.ExtractProviderOpenAI {
		cfg.Fields = generative
		cfg.Obligations = generative
		if settings.Extract.Fallback == domain.ExtractProviderRules {
			cfg.FieldsFallback = rulesExtractor
			cfg.ObligationsFallback = rulesExtractor
		}
	} else {
		cfg.Fields = rulesExtractor
		cfg.Obligations = rulesExtractor
		if generative != nil {
			cfg.FieldsFallback = generative
			cfg.ObligationsFallback = generative
		}
	}

	switch settings.Embedding.Provider {
	case domain.EmbeddingProviderOpenAI:
		cfg.Embeddings, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.Embedding.APIKey,
			BaseURL:    settings.Embedding.BaseURL,
			Model:      settings.Embedding.Model,
			Dimensions: settings.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("building openai embeddings: %w", err)
		}
	default:
		cfg.Embeddings = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.Embedding.BaseURL,
			Model:      settings.Embedding.Model,
			Dimensions: settings.Embedding.Dimensions,
		})
	}

	return services.NewRegistry(cfg)
}

func buildOCR(settings domain.OCRSettings, provider string) (driven.OCRProvider, error) {
	switch provider {
	case domain.OCRProviderAzure:
		ocr, err := azure.New(azure.Config{
			Endpoint: settings.AzureEndpoint,
			Key:      settings.AzureKey,
		})
		if err != nil {
			return nil, fmt.Errorf("building azure ocr: %w", err)
		}
		return ocr, nil
	case domain.OCRProviderTesseract:
		return tesseract.New(tesseract.Config{TessdataPrefix: settings.TessdataPrefix}), nil
	default:
		return nil, fmt.Errorf("%w: unknown OCR provider %q", domain.ErrInvalidInput, provider)
	}
}
