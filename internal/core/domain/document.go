package domain

import (
	"strings"
	"time"
)

// Document represents an ingested contract document.
// Documents are owned by the surrounding platform; this core references
// them by ID and keeps the normalised page model produced by OCR.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceKey is the storage key the ingestion platform assigned.
	SourceKey string

	// Language is the detected document language (ISO 639 code).
	Language string

	// Pages holds the ordered page model produced by the OCR adapter.
	Pages []Page

	// CreatedAt is when the document was first seen by this core.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-processed.
	UpdatedAt time.Time
}

// FullText concatenates page text in page order.
// Offsets recorded on extracted fields and chunks are relative to this
// concatenation, with a single newline joining consecutive pages.
func (d Document) FullText() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// Page is one page of a document in the provider-agnostic layout model.
// Every OCR provider must produce this exact shape so downstream stages
// stay provider-agnostic.
type Page struct {
	// Number is the 1-indexed page number.
	Number int

	// Text is the full raw text of the page.
	Text string

	// Confidence is the provider's recognition confidence for the page.
	Confidence float64

	// Language is the detected page language, if any.
	Language string

	// Width and Height are the page dimensions, if reported.
	Width  float64
	Height float64

	// Blocks are the layout blocks recognised on the page.
	Blocks []LayoutBlock

	// Tables are recognised table structures, if table extraction was
	// requested.
	Tables []Table
}

// BlockKind classifies a layout block.
type BlockKind string

// Layout block kinds.
const (
	BlockParagraph BlockKind = "paragraph"
	BlockLine      BlockKind = "line"
	BlockTable     BlockKind = "table"
)

// LayoutBlock is a positioned region of recognised text.
type LayoutBlock struct {
	// Kind is the block type.
	Kind BlockKind

	// Text is the recognised text of the block.
	Text string

	// Confidence is the recognition confidence for the block.
	Confidence float64

	// Box is the block's bounding box on the page.
	Box BoundingBox
}

// Table is a recognised table structure.
type Table struct {
	// Rows and Columns give the table dimensions.
	Rows    int
	Columns int

	// Cells holds cell text in row-major order.
	Cells [][]string

	// Confidence is the recognition confidence for the table.
	Confidence float64

	// Box is the table's bounding box on the page.
	Box BoundingBox
}

// BoundingBox locates a region on a page.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64

	// Page is the 1-indexed page number, 0 if unknown.
	Page int
}

// TextOffset is a half-open character range [Start, End) into a
// document's full text. It is the provenance anchor for extracted
// values and index chunks.
type TextOffset struct {
	// Start is the inclusive start character position.
	Start int

	// End is the exclusive end character position.
	End int

	// Page is the 1-indexed page number, 0 if unknown.
	Page int
}

// Contains reports whether other lies entirely within o.
func (o TextOffset) Contains(other TextOffset) bool {
	return other.Start >= o.Start && other.End <= o.End
}

// Overlaps reports whether the two ranges share any position.
func (o TextOffset) Overlaps(other TextOffset) bool {
	return o.Start < other.End && other.Start < o.End
}

// Len returns the length of the range in characters.
func (o TextOffset) Len() int {
	if o.End <= o.Start {
		return 0
	}
	return o.End - o.Start
}
