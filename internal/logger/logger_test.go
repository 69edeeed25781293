package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{ReplaceAttr: sanitizeAttributes}))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestSanitizeAttributes_RedactsSecrets(t *testing.T) {
	tests := []struct {
		key    string
		redact bool
	}{
		{"password", true},
		{"new_password", true},
		{"session_token", true},
		{"JWT_SECRET", true},
		{"Authorization", true},
		{"cookie", true},
		{"username", false},
		{"card_name", false},
		{"deck_id", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var buf bytes.Buffer
			newBufferLogger(&buf).Info("event", tt.key, "value")

			entry := decodeLine(t, &buf)
			got := entry[tt.key]
			if tt.redact && got != "[REDACTED]" {
				t.Errorf("%s should be redacted, got %v", tt.key, got)
			}
			if !tt.redact && got != "value" {
				t.Errorf("%s should pass through, got %v", tt.key, got)
			}
		})
	}
}

func TestWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	ctx := SetCorrelationID(context.Background(), "req-123")
	WithCorrelationID(ctx, base).Info("with id")

	entry := decodeLine(t, &buf)
	if entry["correlation_id"] != "req-123" {
		t.Errorf("expected correlation id, got %v", entry["correlation_id"])
	}

	buf.Reset()
	if WithCorrelationID(context.Background(), base) != base {
		t.Error("logger without correlation id should be returned unchanged")
	}
}

func TestGetCorrelationID_FallsBackToRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "chi-1")
	if got := GetCorrelationID(ctx); got != "chi-1" {
		t.Errorf("expected request id fallback, got %q", got)
	}

	ctx = SetCorrelationID(ctx, "corr-1")
	if got := GetCorrelationID(ctx); got != "corr-1" {
		t.Errorf("correlation id should win, got %q", got)
	}

	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}

func TestNew_LevelAndFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	log := New(Config{Level: "warn", Format: "text", Output: "stderr"})
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}

	log = New(Config{Level: "bogus"})
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should default to info")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for name, want := range tests {
		if got := parseLevel(name); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
