package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// ParseSlug extracts a product slug from the named path parameter. Returns the slug and a boolean indicating success.
func ParseSlug(w http.ResponseWriter, r *http.Request, logger *slog.Logger, param string) (string, bool) {
	slug := strings.TrimSpace(chi.URLParam(r, param))
	if slug == "" || len(slug) > 200 || strings.ContainsAny(slug, "/ ") {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %q", param, slug))
		return "", false
	}
	return slug, true
}

// DecodeValid decodes a JSON request body into T and validates it. On failure the response is written and false is
// returned.
func DecodeValid[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, validate *validator.Validate) (T, bool) {
	var dto T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return dto, false
	}
	if err := validate.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return dto, false
		}
		logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return dto, false
	}
	return dto, true
}
