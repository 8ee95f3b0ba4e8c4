package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

// QueryInput is the input schema for the query_contracts tool.
type QueryInput struct {
	Question   string   `json:"question" jsonschema:"the natural-language question to answer from the indexed contracts"`
	ProjectIDs []string `json:"project_ids,omitempty" jsonschema:"restrict the search to these project ids"`
	Contractor string   `json:"contractor,omitempty" jsonschema:"restrict the search to one contracting party"`
	Mode       string   `json:"mode,omitempty" jsonschema:"search mode: semantic, keyword or hybrid (default hybrid)"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"maximum number of cited sources"`
}

// QueryOutput is the output schema for the query_contracts tool.
type QueryOutput struct {
	Answer     string         `json:"answer"`
	AnswerType string         `json:"answer_type"`
	Confidence float64        `json:"confidence"`
	Sources    []SourceOutput `json:"sources"`
	Related    []string       `json:"related_queries,omitempty"`
}

// SourceOutput is one citation backing an answer.
type SourceOutput struct {
	DocumentID string  `json:"document_id"`
	DeepLink   string  `json:"deep_link"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// MetadataInput is the input schema for the extract_metadata tool.
type MetadataInput struct {
	DocumentID string   `json:"document_id,omitempty" jsonschema:"extract from a stored document id"`
	Text       string   `json:"text,omitempty" jsonschema:"extract from raw contract text"`
	Keys       []string `json:"keys,omitempty" jsonschema:"restrict extraction to these field keys"`
}

// MetadataOutput is the output schema for the extract_metadata tool.
type MetadataOutput struct {
	Fields            []FieldOutput `json:"fields"`
	OverallConfidence float64       `json:"overall_confidence"`
	Provider          string        `json:"provider"`
}

// FieldOutput is one extracted field.
type FieldOutput struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ObligationsInput is the input schema for the extract_obligations tool.
type ObligationsInput struct {
	DocumentID       string `json:"document_id,omitempty" jsonschema:"extract from a stored document id"`
	Text             string `json:"text,omitempty" jsonschema:"extract from raw contract text"`
	IncludePenalties bool   `json:"include_penalties,omitempty" jsonschema:"search for penalty clauses near each obligation"`
}

// ObligationsOutput is the output schema for the extract_obligations tool.
type ObligationsOutput struct {
	Obligations  []ObligationOutput `json:"obligations"`
	CoverageRate float64            `json:"coverage_rate"`
}

// ObligationOutput is one extracted obligation.
type ObligationOutput struct {
	Description string  `json:"description"`
	Frequency   string  `json:"frequency"`
	Category    string  `json:"category"`
	DueDate     string  `json:"due_date,omitempty"`
	PenaltyText string  `json:"penalty_text,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_contracts",
		Description: "Answer a natural-language question from the indexed contracts with source citations",
	}, s.handleQuery)

	if s.ports.Extraction != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "extract_metadata",
			Description: "Extract structured contract metadata fields with confidence scores",
		}, s.handleExtractMetadata)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "extract_obligations",
			Description: "Extract contractual obligations with frequency, category and penalties",
		}, s.handleExtractObligations)
	}
}

// handleQuery handles the query_contracts tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	mode, err := domain.ParseSearchMode(input.Mode)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	result, err := s.ports.Query.Query(ctx, driving.QueryRequest{
		Question: input.Question,
		Filter: domain.QueryFilter{
			ProjectIDs: input.ProjectIDs,
			Contractor: input.Contractor,
		},
		MaxResults: input.MaxResults,
		Mode:       mode,
	})
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Answer:     result.Answer.Text,
		AnswerType: string(result.Answer.Type),
		Confidence: result.Answer.Confidence,
		Sources:    make([]SourceOutput, len(result.Answer.Sources)),
		Related:    result.Answer.Related,
	}
	for i, src := range result.Answer.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID: src.DocumentID,
			DeepLink:   src.DeepLink,
			Snippet:    src.Snippet,
			Score:      src.Score,
		}
	}
	return nil, output, nil
}

// handleExtractMetadata handles the extract_metadata tool invocation.
func (s *Server) handleExtractMetadata(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MetadataInput,
) (*mcp.CallToolResult, MetadataOutput, error) {
	keys := make([]domain.FieldKey, 0, len(input.Keys))
	for _, k := range input.Keys {
		key, err := domain.ParseFieldKey(k)
		if err != nil {
			return nil, MetadataOutput{}, err
		}
		keys = append(keys, key)
	}

	result, err := s.ports.Extraction.ExtractMetadata(ctx, driving.MetadataRequest{
		DocumentID: input.DocumentID,
		Text:       input.Text,
		Keys:       keys,
	})
	if err != nil {
		return nil, MetadataOutput{}, err
	}

	output := MetadataOutput{
		Fields:            make([]FieldOutput, len(result.Fields)),
		OverallConfidence: result.OverallConfidence,
		Provider:          result.Provider,
	}
	for i, f := range result.Fields {
		output.Fields[i] = FieldOutput{
			Key:        string(f.Key),
			Value:      f.Value,
			Confidence: f.Confidence,
			Source:     string(f.Source),
		}
	}
	return nil, output, nil
}

// handleExtractObligations handles the extract_obligations tool invocation.
func (s *Server) handleExtractObligations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ObligationsInput,
) (*mcp.CallToolResult, ObligationsOutput, error) {
	result, err := s.ports.Extraction.ExtractObligations(ctx, driving.ObligationsRequest{
		DocumentID:       input.DocumentID,
		Text:             input.Text,
		IncludePenalties: input.IncludePenalties,
	})
	if err != nil {
		return nil, ObligationsOutput{}, err
	}

	output := ObligationsOutput{
		Obligations:  make([]ObligationOutput, len(result.Obligations)),
		CoverageRate: result.CoverageRate,
	}
	for i, ob := range result.Obligations {
		output.Obligations[i] = ObligationOutput{
			Description: ob.Description,
			Frequency:   string(ob.Frequency),
			Category:    string(ob.Category),
			DueDate:     ob.DueDate,
			PenaltyText: ob.PenaltyText,
			Confidence:  ob.Confidence,
		}
	}
	return nil, output, nil
}
