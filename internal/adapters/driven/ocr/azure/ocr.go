// Package azure provides the cloud OCR provider backed by Azure
// Document Intelligence. Analysis is asynchronous on the Azure side:
// the adapter submits the document, then polls the operation until it
// completes, and maps the layout result into the provider-agnostic
// page model.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.OCRProvider = (*Provider)(nil)

// Default configuration values.
const (
	apiVersion          = "2023-07-31"
	modelRead           = "prebuilt-read"
	modelLayout         = "prebuilt-layout"
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 5 * time.Minute
)

// Config holds configuration for the Azure provider.
type Config struct {
	// Endpoint is the Document Intelligence resource endpoint (required).
	Endpoint string

	// Key is the resource API key (required).
	Key string

	// PollInterval is the delay between result polls.
	PollInterval time.Duration

	// Timeout bounds the whole analyze operation.
	Timeout time.Duration
}

// Provider calls Azure Document Intelligence over REST.
type Provider struct {
	client       *http.Client
	endpoint     string
	key          string
	pollInterval time.Duration
}

// analyzeResult mirrors the slice of the Azure response the adapter
// consumes.
type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Languages []struct {
			Locale     string  `json:"locale"`
			Confidence float64 `json:"confidence"`
		} `json:"languages"`
		Pages []struct {
			PageNumber int     `json:"pageNumber"`
			Width      float64 `json:"width"`
			Height     float64 `json:"height"`
			Lines      []struct {
				Content string    `json:"content"`
				Polygon []float64 `json:"polygon"`
			} `json:"lines"`
			Words []struct {
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"pages"`
		Paragraphs []struct {
			Content         string `json:"content"`
			BoundingRegions []struct {
				PageNumber int       `json:"pageNumber"`
				Polygon    []float64 `json:"polygon"`
			} `json:"boundingRegions"`
		} `json:"paragraphs"`
		Tables []struct {
			RowCount    int `json:"rowCount"`
			ColumnCount int `json:"columnCount"`
			Cells       []struct {
				RowIndex    int    `json:"rowIndex"`
				ColumnIndex int    `json:"columnIndex"`
				Content     string `json:"content"`
			} `json:"cells"`
			BoundingRegions []struct {
				PageNumber int       `json:"pageNumber"`
				Polygon    []float64 `json:"polygon"`
			} `json:"boundingRegions"`
		} `json:"tables"`
	} `json:"analyzeResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New creates the Azure OCR provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, fmt.Errorf("azure: endpoint and key are required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Provider{
		client:       &http.Client{Timeout: cfg.Timeout},
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		pollInterval: cfg.PollInterval,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return domain.OCRProviderAzure }

// ExtractText analyses the document and maps the result into pages.
// The layout model is used when tables are requested, the cheaper read
// model otherwise.
func (p *Provider) ExtractText(ctx context.Context, data []byte, hints driven.OCRHints) ([]domain.Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrDocumentUnreadable)
	}

	model := modelRead
	if hints.ExtractTables {
		model = modelLayout
	}

	opURL, err := p.submit(ctx, model, data)
	if err != nil {
		return nil, err
	}
	result, err := p.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}
	pages := mapPages(result, hints)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: azure recognised no pages", domain.ErrDocumentUnreadable)
	}
	return pages, nil
}

// submit starts analysis and returns the operation URL to poll.
func (p *Provider) submit(ctx context.Context, model string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s", p.endpoint, model, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: azure: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusAccepted:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnsupportedMediaType:
		return "", fmt.Errorf("%w: azure rejected the document: %s", domain.ErrDocumentUnreadable, string(body))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: azure returned status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(body))
	default:
		return "", fmt.Errorf("azure returned status %d: %s", resp.StatusCode, string(body))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("%w: azure returned no operation location", domain.ErrProviderUnavailable)
	}
	return opURL, nil
}

// poll waits for the analyze operation to finish.
func (p *Provider) poll(ctx context.Context, opURL string) (*analyzeResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", p.key)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: azure: %v", domain.ErrProviderUnavailable, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: azure: reading poll response: %v", domain.ErrProviderUnavailable, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: azure poll returned status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(body))
		}

		var result analyzeResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode poll response: %w", err)
		}
		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			msg := "analysis failed"
			if result.Error != nil {
				msg = result.Error.Message
			}
			return nil, fmt.Errorf("%w: azure: %s", domain.ErrDocumentUnreadable, msg)
		}
	}
}

// mapPages converts the Azure layout result into the page model.
// Page confidence is the mean word confidence.
func mapPages(result *analyzeResult, hints driven.OCRHints) []domain.Page {
	ar := result.AnalyzeResult

	language := ""
	if len(ar.Languages) > 0 {
		language = ar.Languages[0].Locale
	}

	pages := make([]domain.Page, 0, len(ar.Pages))
	for _, p := range ar.Pages {
		var lines []string
		var blocks []domain.LayoutBlock
		for _, line := range p.Lines {
			lines = append(lines, line.Content)
			if hints.ExtractLayout {
				blocks = append(blocks, domain.LayoutBlock{
					Kind: domain.BlockLine,
					Text: line.Content,
					Box:  boxFromPolygon(line.Polygon, p.PageNumber),
				})
			}
		}

		confidence := 1.0
		if len(p.Words) > 0 {
			var sum float64
			for _, w := range p.Words {
				sum += w.Confidence
			}
			confidence = sum / float64(len(p.Words))
		}

		pages = append(pages, domain.Page{
			Number:     p.PageNumber,
			Text:       strings.Join(lines, "\n"),
			Confidence: confidence,
			Language:   language,
			Width:      p.Width,
			Height:     p.Height,
			Blocks:     blocks,
		})
	}

	if hints.ExtractLayout {
		attachParagraphs(pages, result)
	}
	if hints.ExtractTables {
		attachTables(pages, result)
	}
	return pages
}

func attachParagraphs(pages []domain.Page, result *analyzeResult) {
	for _, para := range result.AnalyzeResult.Paragraphs {
		if len(para.BoundingRegions) == 0 {
			continue
		}
		region := para.BoundingRegions[0]
		for i := range pages {
			if pages[i].Number == region.PageNumber {
				pages[i].Blocks = append(pages[i].Blocks, domain.LayoutBlock{
					Kind: domain.BlockParagraph,
					Text: para.Content,
					Box:  boxFromPolygon(region.Polygon, region.PageNumber),
				})
				break
			}
		}
	}
}

func attachTables(pages []domain.Page, result *analyzeResult) {
	for _, t := range result.AnalyzeResult.Tables {
		if t.RowCount == 0 || t.ColumnCount == 0 || len(t.BoundingRegions) == 0 {
			continue
		}
		cells := make([][]string, t.RowCount)
		for r := range cells {
			cells[r] = make([]string, t.ColumnCount)
		}
		for _, c := range t.Cells {
			if c.RowIndex < t.RowCount && c.ColumnIndex < t.ColumnCount {
				cells[c.RowIndex][c.ColumnIndex] = c.Content
			}
		}
		region := t.BoundingRegions[0]
		table := domain.Table{
			Rows:    t.RowCount,
			Columns: t.ColumnCount,
			Cells:   cells,
			Box:     boxFromPolygon(region.Polygon, region.PageNumber),
		}
		for i := range pages {
			if pages[i].Number == region.PageNumber {
				pages[i].Tables = append(pages[i].Tables, table)
				break
			}
		}
	}
}

// boxFromPolygon bounds a flat [x1,y1,x2,y2,...] polygon.
func boxFromPolygon(polygon []float64, page int) domain.BoundingBox {
	if len(polygon) < 4 {
		return domain.BoundingBox{Page: page}
	}
	minX, minY := polygon[0], polygon[1]
	maxX, maxY := minX, minY
	for i := 0; i+1 < len(polygon); i += 2 {
		x, y := polygon[i], polygon[i+1]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return domain.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY, Page: page}
}

// Ping checks resource reachability and key validity with a zero-byte
// analyze request, which fails fast with 400 when healthy.
func (p *Provider) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s", p.endpoint, modelRead, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: azure: ping failed: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("azure: invalid credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: azure returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error { return nil }
