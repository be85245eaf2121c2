package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eventradar/radar/internal/auth"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/models"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the admin-facing error category and message.
type ErrorDetail struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, category, message string) {
	writeJSON(w, logger, status, ErrorBody{Error: ErrorDetail{Category: category, Message: message}})
}

func badRequest(w http.ResponseWriter, logger *slog.Logger, message string) {
	writeError(w, logger, http.StatusBadRequest, models.CategoryValidation, message)
}

// respondError maps a service error to a status code and category. Internal
// details of store failures are logged, not returned.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	category := models.ErrorCategory(err)
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, ingestion.ErrRunInProgress):
		status, category = http.StatusConflict, models.CategoryValidation
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, category = http.StatusUnauthorized, models.CategoryValidation
	case errors.Is(err, auth.ErrNotConfigured):
		status, category = http.StatusServiceUnavailable, models.CategoryInternal
	case category == models.CategoryValidation:
		status = http.StatusBadRequest
	case category == models.CategoryNotFound:
		status = http.StatusNotFound
	case category == models.CategoryFetch || category == models.CategoryExtraction:
		status = http.StatusBadGateway
	default:
		logger.Error("request failed", "category", category, "error", err)
		message = "internal error"
	}
	writeError(w, logger, status, category, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
