// Package chunker splits document text into overlapping windows
// bounded by sentence and paragraph breaks, sized to the embedding
// model's input limit.
package chunker

import (
	"strings"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/core/domain"
)

// DefaultChunkSize is the default window in characters.
const DefaultChunkSize = 1000

// DefaultOverlap is the default overlap between consecutive windows.
const DefaultOverlap = 200

// minBreakRatio is how far into the window a sentence break must fall
// to be used as the boundary instead of a hard cut.
const minBreakRatio = 0.5

// Chunker produces offset-anchored chunks from document text.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split chunks the document text. Each chunk carries its character
// range in the source text so structured values can be attached by
// offset containment. Empty content produces no chunks.
func (c *Chunker) Split(documentID, content string) []domain.IndexChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	contentLen := len(content)
	estimated := contentLen/(c.chunkSize-c.overlap) + 1
	chunks := make([]domain.IndexChunk, 0, estimated)

	position := 0
	start := 0

	for start < contentLen {
		end := start + c.chunkSize
		if end >= contentLen {
			end = contentLen
		} else {
			end = c.breakPoint(content, start, end)
		}

		text := strings.TrimSpace(content[start:end])
		if text != "" {
			chunks = append(chunks, domain.IndexChunk{
				ID:         uuid.New().String(),
				DocumentID: documentID,
				Content:    text,
				Position:   position,
				Offset:     domain.TextOffset{Start: start, End: end},
			})
			position++
		}

		if end >= contentLen {
			break
		}
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks
}

// breakPoint moves the window end back to the nearest paragraph or
// sentence boundary, provided the boundary keeps at least half the
// window. Otherwise the hard cut stands.
func (c *Chunker) breakPoint(content string, start, end int) int {
	window := content[start:end]

	// Paragraph breaks are preferred over sentence breaks.
	if i := strings.LastIndex(window, "\n\n"); i > int(float64(c.chunkSize)*minBreakRatio) {
		return start + i + 1
	}

	best := -1
	for _, terminator := range []string{". ", ".\n", "! ", "? "} {
		if i := strings.LastIndex(window, terminator); i > best {
			best = i
		}
	}
	if best > int(float64(c.chunkSize)*minBreakRatio) {
		return start + best + 1
	}
	return end
}
