package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestLoggingMiddleware_LogsRouteAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(StructuredLogger(log))
	r.Get("/decks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/decks/42?x=1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("4xx should log at WARN, got %v", entry["level"])
	}
	if entry["route"] != "/decks/{id}" {
		t.Errorf("expected route pattern, got %v", entry["route"])
	}
	if entry["path"] != "/decks/42" || entry["query"] != "x=1" {
		t.Errorf("unexpected path/query: %v %v", entry["path"], entry["query"])
	}
	if id, _ := entry["correlation_id"].(string); id == "" {
		t.Error("expected a correlation id")
	}
	if status, _ := entry["status"].(float64); status != http.StatusNotFound {
		t.Errorf("expected status 404, got %v", entry["status"])
	}
}
