package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceContextPropagation checks that an incoming traceparent reaches
// spans started inside handlers
func TestTraceContextPropagation(t *testing.T) {
	if _, err := Setup(context.Background(), Config{ServiceName: "reminders-api"}); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("reminders-api"))
	r.HandleFunc("/reminders/{id}/card", func(w http.ResponseWriter, r *http.Request) {
		_, end := StartSpan(r.Context(), "card.build")
		end(nil)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		traceParent string
		wantTraceID string
	}{
		{name: "new trace"},
		{
			name:        "continued trace",
			traceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodGet, "/reminders/42/card", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("spans = %d, want handler span and server span", len(spans))
			}
			inner, server := spans[0], spans[1]
			if inner.Name != "card.build" {
				t.Errorf("first span = %q, want card.build", inner.Name)
			}
			if inner.Parent.SpanID() != server.SpanContext.SpanID() {
				t.Error("handler span is not a child of the server span")
			}
			if tt.wantTraceID != "" && server.SpanContext.TraceID().String() != tt.wantTraceID {
				t.Errorf("trace id = %s, want %s", server.SpanContext.TraceID(), tt.wantTraceID)
			}
		})
	}
}
