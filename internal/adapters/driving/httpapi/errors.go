package httpapi

import (
	"errors"
	"net/http"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/logger"
)

// errorBody is the uniform error response shape.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError translates the domain error taxonomy to HTTP status
// codes. Unrecognised errors are logged and masked as a generic 500 so
// provider internals never reach clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, domain.ErrDocumentUnreadable):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "document_unreadable"})
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "a required provider is temporarily unavailable",
			Code:  "provider_unavailable",
		})
	default:
		logger.Warn("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Code:  "internal",
		})
	}
}
