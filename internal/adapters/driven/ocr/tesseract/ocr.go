// Package tesseract provides the local OCR provider backed by the
// Tesseract engine. Plain UTF-8 text passes through without OCR so
// text-native documents do not pay the recognition cost.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/otiai10/gosseract/v2"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.OCRProvider = (*Provider)(nil)

// DefaultLanguage is the Tesseract language used when the caller
// supplies no hint.
const DefaultLanguage = "eng"

// Config holds configuration for the Tesseract provider.
type Config struct {
	// TessdataPrefix overrides the Tesseract trained-data path.
	TessdataPrefix string
}

// Provider runs Tesseract OCR in-process.
type Provider struct {
	tessdataPrefix string
}

// New creates the Tesseract OCR provider.
func New(cfg Config) *Provider {
	return &Provider{tessdataPrefix: cfg.TessdataPrefix}
}

// Name returns the provider name.
func (p *Provider) Name() string { return domain.OCRProviderTesseract }

// ExtractText recognises text from image bytes. UTF-8 text input is
// passed through directly, split into pages on form feeds.
func (p *Provider) ExtractText(ctx context.Context, data []byte, hints driven.OCRHints) ([]domain.Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrDocumentUnreadable)
	}
	if isPlainText(data) {
		return textPages(string(data), hints), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if p.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(p.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("tesseract: setting tessdata prefix: %w", err)
		}
	}
	langs := hints.Languages
	if len(langs) == 0 {
		langs = []string{DefaultLanguage}
	}
	if err := client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("tesseract: setting languages: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: tesseract: %v", domain.ErrDocumentUnreadable, err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract: %v", domain.ErrDocumentUnreadable, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text recognised", domain.ErrDocumentUnreadable)
	}

	page := domain.Page{
		Number:     1,
		Text:       text,
		Confidence: 0.9,
		Language:   langs[0],
	}
	if hints.ExtractLayout {
		blocks, conf, err := lineBlocks(client)
		if err == nil {
			page.Blocks = blocks
			if conf > 0 {
				page.Confidence = conf
			}
		}
	}
	return []domain.Page{page}, nil
}

// lineBlocks reads text-line boxes from the recogniser and averages
// their confidences for the page score.
func lineBlocks(client *gosseract.Client) ([]domain.LayoutBlock, float64, error) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, 0, err
	}
	blocks := make([]domain.LayoutBlock, 0, len(boxes))
	var confSum float64
	for _, b := range boxes {
		blocks = append(blocks, domain.LayoutBlock{
			Kind:       domain.BlockLine,
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Box: domain.BoundingBox{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
		})
		confSum += b.Confidence
	}
	var conf float64
	if len(boxes) > 0 {
		conf = confSum / float64(len(boxes)) / 100.0
	}
	return blocks, conf, nil
}

// Ping verifies the Tesseract engine is usable.
func (p *Provider) Ping(ctx context.Context) error {
	client := gosseract.NewClient()
	defer client.Close()
	if _, err := client.GetAvailableLanguages(); err != nil {
		return fmt.Errorf("%w: tesseract: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error { return nil }

// isPlainText reports whether the bytes are valid UTF-8 with no
// control bytes that would indicate a binary format.
func isPlainText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return true
}

// textPages splits pass-through text into pages on form feeds.
func textPages(text string, hints driven.OCRHints) []domain.Page {
	parts := strings.Split(text, "\f")
	pages := make([]domain.Page, 0, len(parts))
	n := 1
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		lang := ""
		if len(hints.Languages) > 0 {
			lang = hints.Languages[0]
		}
		pages = append(pages, domain.Page{
			Number:     n,
			Text:       part,
			Confidence: 1.0,
			Language:   lang,
		})
		n++
	}
	return pages
}
