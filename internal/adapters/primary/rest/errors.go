package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Field    string   `json:"field,omitempty"`
	MediaIDs []string `json:"mediaIds,omitempty"`
}

// writeError traduit les erreurs du domaine en statut HTTP.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.MediaNotFoundError
		used       *domain.MediaAlreadyUsedError
	)

	switch {
	case errors.As(err, &validation):
		writeJSONError(w, http.StatusBadRequest, "invalid_input", validation.Message, func(e *errorResponse) {
			e.Field = validation.Field
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, domain.ErrAuthorNotFound):
		writeJSONError(w, http.StatusNotFound, "author_not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrPostNotFound):
		writeJSONError(w, http.StatusNotFound, "post_not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSONError(w, http.StatusForbidden, "unauthorized", err.Error(), nil)
	case errors.As(err, &notFound):
		writeJSONError(w, http.StatusUnprocessableEntity, "media_not_found", "media not found", func(e *errorResponse) {
			e.MediaIDs = notFound.IDs
		})
	case errors.As(err, &used):
		writeJSONError(w, http.StatusConflict, "media_already_used", "media already attached to a post", func(e *errorResponse) {
			e.MediaIDs = used.IDs
		})
	case errors.Is(err, domain.ErrPersistence):
		slog.ErrorContext(r.Context(), "Persistence failure", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "persistence_failure", "temporarily unavailable, retry", nil)
	default:
		slog.ErrorContext(r.Context(), "Unexpected error", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, decorate func(*errorResponse)) {
	resp := errorResponse{Error: code, Message: message}
	if decorate != nil {
		decorate(&resp)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
