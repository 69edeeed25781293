// Package api holds the JSON response envelope and request helpers shared by
// every HTTP handler.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tcglibrary/catalog/internal/apperr"
)

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// WriteSuccess writes a successful JSON response
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// WriteError writes an error JSON response
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}

	json.NewEncoder(w).Encode(response)
}

// WriteAppError maps err to a response. Classified errors keep their message;
// anything else is logged and answered with a generic 500.
func WriteAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		WriteError(w, apperr.Status(e.Kind), e.Code, e.Message, e.Fields)
		return
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Request failed", "error", err)
	WriteError(w, http.StatusInternalServerError, apperr.CodeInternal, "An unexpected error occurred", nil)
}

// DecodeJSON decodes the request body into dst, returning a validation error
// when the body is not valid JSON
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid request body", nil)
	}
	return nil
}

// QueryInt reads a positive integer query parameter, falling back to def
func QueryInt(r *http.Request, key string, def int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return def
	}
	return n
}
