// Package httpapi exposes the document intelligence services as a
// JSON HTTP API. It is a thin adapter: request decoding, service
// calls, error translation. No business logic lives here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// Server bundles the driving services behind an http.Handler.
type Server struct {
	extraction  driving.ExtractionService
	query       driving.QueryService
	corrections driving.CorrectionService
	index       driving.IndexService
	documents   driving.DocumentService
	jobs        driving.JobService
	registry    driving.ProviderRegistry
}

// NewServer creates the API server. All services are required except
// jobs, which disables the async endpoints when nil.
func NewServer(
	extraction driving.ExtractionService,
	query driving.QueryService,
	corrections driving.CorrectionService,
	index driving.IndexService,
	documents driving.DocumentService,
	jobs driving.JobService,
	registry driving.ProviderRegistry,
) *Server {
	return &Server{
		extraction:  extraction,
		query:       query,
		corrections: corrections,
		index:       index,
		documents:   documents,
		jobs:        jobs,
		registry:    registry,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract/metadata", s.handleExtractMetadata)
	mux.HandleFunc("POST /extract/obligations", s.handleExtractObligations)
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /corrections", s.handleApplyCorrection)
	mux.HandleFunc("GET /corrections", s.handleListCorrections)

	mux.HandleFunc("POST /documents", s.handleIngest)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)

	mux.HandleFunc("GET /jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleJobCancel)

	mux.HandleFunc("GET /providers", s.handleProviders)
	mux.HandleFunc("GET /health", s.handleHealth)

	return logRequests(mux)
}

// ListenAndServe runs the API on addr until the server fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http api listening on %s", addr)
	return srv.ListenAndServe()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

// decodeJSON rejects unknown fields so client typos fail loudly.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
