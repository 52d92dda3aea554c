package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/benvon/smart-reminders/internal/validation"
)

// maxErrorMessageLength caps client-facing error messages
const maxErrorMessageLength = 200

type successBody struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successBody{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondJSONError sends an error JSON response
func respondJSONError(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	writeJSON(w, status, errorBody{
		Error:     errorType,
		Message:   sanitizeErrorMessage(message),
		RequestID: request.RequestID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondRetryableError sends an error the client may retry unchanged
func respondRetryableError(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	writeJSON(w, status, errorBody{
		Error:     errorType,
		Message:   sanitizeErrorMessage(message),
		Retryable: true,
		RequestID: request.RequestID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sanitizeErrorMessage truncates messages on a rune boundary
func sanitizeErrorMessage(message string) string {
	if len(message) <= maxErrorMessageLength {
		return message
	}
	cut := maxErrorMessageLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "..."
}

// decodeJSON decodes and validates the request body into dst. It writes the
// error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			respondJSONError(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
		case errors.Is(err, io.EOF):
			respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "Request body is required")
		default:
			respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "Invalid request body")
		}
		return false
	}
	if err := validation.Validate.Struct(dst); err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "Validation failed: "+validation.FormatErrors(err))
		return false
	}
	return true
}

// parsePage reads page and page_size, clamping page_size to the storage maximum
func parsePage(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, database.DefaultPageSize
	q := r.URL.Query()
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(q.Get("page_size")); err == nil && ps > 0 {
		pageSize = min(ps, database.MaxPageSize)
	}
	return page, pageSize
}

// parseTime reads an RFC 3339 query parameter, returning fallback when absent
func parseTime(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}
