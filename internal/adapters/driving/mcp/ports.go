package mcp

import (
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP
// server. This provides a single injection point.
type Ports struct {
	// Query answers natural-language questions over the index.
	Query driving.QueryService

	// Extraction runs metadata and obligation extraction.
	Extraction driving.ExtractionService

	// Documents serves stored document lookups for resources.
	Documents driving.DocumentService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Extraction and Documents are optional; their tools and
	// resources are simply not registered.
	return nil
}
