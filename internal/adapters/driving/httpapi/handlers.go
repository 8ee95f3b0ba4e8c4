package httpapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

type extractMetadataRequest struct {
	DocumentID          string   `json:"document_id,omitempty"`
	Text                string   `json:"text,omitempty"`
	Keys                []string `json:"keys,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	ForceReextraction   bool     `json:"force_reextraction,omitempty"`
	Async               bool     `json:"async,omitempty"`
}

type extractMetadataResponse struct {
	Fields            []fieldDTO `json:"fields"`
	SkippedKeys       []string   `json:"skipped_keys,omitempty"`
	OverallConfidence float64    `json:"overall_confidence"`
	AttemptedKeys     int        `json:"attempted_keys"`
	Provider          string     `json:"provider"`
	ProcessingTimeMS  int64      `json:"processing_time_ms"`
}

func (s *Server) handleExtractMetadata(w http.ResponseWriter, r *http.Request) {
	var req extractMetadataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	keys := make([]domain.FieldKey, 0, len(req.Keys))
	for _, k := range req.Keys {
		key, err := domain.ParseFieldKey(k)
		if err != nil {
			writeError(w, err)
			return
		}
		keys = append(keys, key)
	}

	serviceReq := driving.MetadataRequest{
		DocumentID:          req.DocumentID,
		Text:                req.Text,
		Keys:                keys,
		ConfidenceThreshold: req.ConfidenceThreshold,
		ForceReextraction:   req.ForceReextraction,
	}

	if req.Async {
		s.submitJob(w, r, "extract_metadata", req.DocumentID, func(ctx context.Context) error {
			_, err := s.extraction.ExtractMetadata(ctx, serviceReq)
			return err
		})
		return
	}

	result, err := s.extraction.ExtractMetadata(r.Context(), serviceReq)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := extractMetadataResponse{
		Fields:            make([]fieldDTO, 0, len(result.Fields)),
		OverallConfidence: result.OverallConfidence,
		AttemptedKeys:     result.AttemptedKeys,
		Provider:          result.Provider,
		ProcessingTimeMS:  millis(result.ProcessingTime),
	}
	for _, f := range result.Fields {
		resp.Fields = append(resp.Fields, fieldFrom(f))
	}
	for _, k := range result.SkippedKeys {
		resp.SkippedKeys = append(resp.SkippedKeys, string(k))
	}
	writeJSON(w, http.StatusOK, resp)
}

type extractObligationsRequest struct {
	DocumentID          string  `json:"document_id,omitempty"`
	Text                string  `json:"text,omitempty"`
	IncludePenalties    bool    `json:"include_penalties,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	Async               bool    `json:"async,omitempty"`
}

type extractObligationsResponse struct {
	Obligations         []obligationDTO `json:"obligations"`
	CoverageRate        float64         `json:"coverage_rate"`
	AverageConfidence   float64         `json:"average_confidence"`
	HighConfidenceCount int             `json:"high_confidence_count"`
	Categories          []string        `json:"categories,omitempty"`
	Provider            string          `json:"provider"`
	ProcessingTimeMS    int64           `json:"processing_time_ms"`
}

func (s *Server) handleExtractObligations(w http.ResponseWriter, r *http.Request) {
	var req extractObligationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	serviceReq := driving.ObligationsRequest{
		DocumentID:          req.DocumentID,
		Text:                req.Text,
		IncludePenalties:    req.IncludePenalties,
		ConfidenceThreshold: req.ConfidenceThreshold,
	}

	if req.Async {
		s.submitJob(w, r, "extract_obligations", req.DocumentID, func(ctx context.Context) error {
			_, err := s.extraction.ExtractObligations(ctx, serviceReq)
			return err
		})
		return
	}

	result, err := s.extraction.ExtractObligations(r.Context(), serviceReq)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := extractObligationsResponse{
		Obligations:         make([]obligationDTO, 0, len(result.Obligations)),
		CoverageRate:        result.CoverageRate,
		AverageConfidence:   result.AverageConfidence,
		HighConfidenceCount: result.HighConfidenceCount,
		Provider:            result.Provider,
		ProcessingTimeMS:    millis(result.ProcessingTime),
	}
	for _, ob := range result.Obligations {
		resp.Obligations = append(resp.Obligations, obligationFrom(ob))
	}
	for _, c := range result.Categories {
		resp.Categories = append(resp.Categories, string(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

type indexDocumentRequest struct {
	DocumentID string      `json:"document_id"`
	Content    string      `json:"content,omitempty"`
	Metadata   metadataDTO `json:"metadata,omitempty"`
}

type indexRequest struct {
	Documents []indexDocumentRequest `json:"documents"`
	Operation string                 `json:"operation,omitempty"`
}

type indexResponse struct {
	Indexed int `json:"indexed"`
	Deleted int `json:"deleted"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, fmt.Errorf("%w: documents required", domain.ErrInvalidInput))
		return
	}
	if req.Operation == "" {
		req.Operation = "upsert"
	}
	if req.Operation != "upsert" && req.Operation != "delete" {
		writeError(w, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, req.Operation))
		return
	}

	var resp indexResponse
	for _, doc := range req.Documents {
		if doc.DocumentID == "" {
			writeError(w, fmt.Errorf("%w: document_id required", domain.ErrInvalidInput))
			return
		}
		var err error
		if req.Operation == "delete" {
			err = s.index.Delete(r.Context(), doc.DocumentID)
			resp.Deleted++
		} else {
			err = s.index.Upsert(r.Context(), driving.UpsertRequest{
				DocumentID: doc.DocumentID,
				Content:    doc.Content,
				Meta:       doc.Metadata.toDomain(),
			})
			resp.Indexed++
		}
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryRequest struct {
	Question   string    `json:"question"`
	Filters    filterDTO `json:"filters,omitempty"`
	MaxResults int       `json:"max_results,omitempty"`
	SearchMode string    `json:"search_mode,omitempty"`
}

type queryResponse struct {
	Question          string        `json:"question"`
	Answer            string        `json:"answer"`
	AnswerType        string        `json:"answer_type"`
	Confidence        float64       `json:"confidence"`
	Sources           []citationDTO `json:"sources"`
	Related           []string      `json:"related_queries,omitempty"`
	SearchResultCount int           `json:"search_result_count"`
	ProcessingTimeMS  int64         `json:"processing_time_ms"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	mode, err := domain.ParseSearchMode(req.SearchMode)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.query.Query(r.Context(), driving.QueryRequest{
		Question:   req.Question,
		Filter:     req.Filters.toDomain(),
		MaxResults: req.MaxResults,
		Mode:       mode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := queryResponse{
		Question:          result.Question,
		Answer:            result.Answer.Text,
		AnswerType:        string(result.Answer.Type),
		Confidence:        result.Answer.Confidence,
		Sources:           make([]citationDTO, 0, len(result.Answer.Sources)),
		Related:           result.Answer.Related,
		SearchResultCount: result.SearchResultCount,
		ProcessingTimeMS:  millis(result.ProcessingTime),
	}
	for _, c := range result.Answer.Sources {
		resp.Sources = append(resp.Sources, citationFrom(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

type correctionRequest struct {
	DocumentID string `json:"document_id"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	NewValue   string `json:"new_value"`
	Actor      string `json:"actor,omitempty"`
}

func (s *Server) handleApplyCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	correction, err := s.corrections.Apply(r.Context(), driving.CorrectionRequest{
		DocumentID: req.DocumentID,
		TargetKind: domain.TargetKind(req.TargetKind),
		TargetID:   req.TargetID,
		NewValue:   req.NewValue,
		Actor:      req.Actor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, correctionFrom(*correction))
}

func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("document_id")
	corrections, err := s.corrections.History(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]correctionDTO, 0, len(corrections))
	for _, c := range corrections {
		out = append(out, correctionFrom(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": out})
}

type ingestRequest struct {
	DocumentID    string   `json:"document_id,omitempty"`
	SourceKey     string   `json:"source_key,omitempty"`
	Data          string   `json:"data"`
	Languages     []string `json:"languages,omitempty"`
	ExtractLayout bool     `json:"extract_layout,omitempty"`
	ExtractTables bool     `json:"extract_tables,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, fmt.Errorf("%w: data must be base64", domain.ErrInvalidInput))
		return
	}

	doc, err := s.documents.Ingest(r.Context(), driving.IngestRequest{
		DocumentID: req.DocumentID,
		SourceKey:  req.SourceKey,
		Data:       data,
		Hints: driven.OCRHints{
			Languages:     req.Languages,
			ExtractLayout: req.ExtractLayout,
			ExtractTables: req.ExtractTables,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentFrom(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.documents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": ids})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentFrom(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type jobStatusResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DocumentID  string `json:"document_id,omitempty"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, fmt.Errorf("%w: background jobs disabled", domain.ErrInvalidInput))
		return
	}
	status, err := s.jobs.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := jobStatusResponse{
		ID:          status.ID,
		Kind:        status.Kind,
		DocumentID:  status.DocumentID,
		State:       string(status.State),
		Error:       status.Err,
		SubmittedAt: status.SubmittedAt.Format(timeFormat),
	}
	if !status.FinishedAt.IsZero() {
		resp.FinishedAt = status.FinishedAt.Format(timeFormat)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, fmt.Errorf("%w: background jobs disabled", domain.ErrInvalidInput))
		return
	}
	if err := s.jobs.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Describe())
}

type healthResponse struct {
	Status    string            `json:"status"`
	Providers map[string]string `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.registry.Ping(r.Context())
	resp := healthResponse{Status: "ok", Providers: make(map[string]string, len(results))}
	status := http.StatusOK
	for name, err := range results {
		if err != nil {
			resp.Providers[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Providers[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

// submitJob enqueues work through the job runner and answers 202 with
// the job id.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request, kind, documentID string, run func(ctx context.Context) error) {
	if s.jobs == nil {
		writeError(w, fmt.Errorf("%w: background jobs disabled", domain.ErrInvalidInput))
		return
	}
	jobID, err := s.jobs.Submit(r.Context(), kind, documentID, run)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "state": string(driving.JobPending)})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
