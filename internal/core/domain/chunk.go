package domain

import "time"

// FilterMetadata is the denormalised metadata carried by every index
// chunk so queries can be restricted without touching the document
// store. The values are copied from the ingestion platform's metadata
// at index time.
type FilterMetadata struct {
	// ProjectID is the owning project.
	ProjectID string

	// Contractor is the contracting party name.
	Contractor string

	// Status is the contract status as reported by the platform.
	Status string

	// Date is the contract date used for range filtering.
	Date time.Time
}

// IndexChunk is the unit of indexing and retrieval: a bounded span of
// document text plus the structured values whose offsets fall inside
// it.
type IndexChunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID is the back-reference to the owning document.
	DocumentID string

	// Content is the chunk text.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Offset is the chunk's character range in the document full text.
	Offset TextOffset

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// FieldIDs are the extracted field versions whose offsets fall
	// inside this chunk.
	FieldIDs []string

	// ObligationIDs are the obligations whose offsets fall inside this
	// chunk.
	ObligationIDs []string

	// Meta is the denormalised filter metadata.
	Meta FilterMetadata
}
