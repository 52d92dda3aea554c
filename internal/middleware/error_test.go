package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_NoPanic(t *testing.T) {
	t.Parallel()

	handler := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("Expected untouched response, got %d %q", w.Code, w.Body.String())
	}
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RequestID(ErrorHandler(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]string
		m["key"] = "value"
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reminders", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Success || body.Error != "Internal Server Error" || body.Message != "An unexpected error occurred" {
		t.Errorf("Unexpected body: %+v", body)
	}
	if body.Path != "/api/v1/reminders" || body.Timestamp == "" {
		t.Errorf("Expected path and timestamp, got %+v", body)
	}
	if body.RequestID == "" || body.RequestID != w.Header().Get(RequestIDHeader) {
		t.Errorf("Expected request id %q in body, got %q", w.Header().Get(RequestIDHeader), body.RequestID)
	}

	if logs.FilterMessage("panic_recovered").Len() != 1 {
		t.Errorf("Expected one panic_recovered entry, got %v", logs.All())
	}
}
