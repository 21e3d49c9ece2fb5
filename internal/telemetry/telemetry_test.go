package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

func TestParseLevel(t *testing.T) {
	for input, expected := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		level, err := ParseLevel(input)
		if err != nil || level != expected {
			t.Fatalf("expected %s for %q, got %s (%v)", expected, input, level, err)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), Options{Exporter: "jaeger"}); err == nil {
		t.Fatalf("expected unknown exporter to fail")
	}
}

func TestSlogLoggerProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := otelslog.NewLogger("test-scope", otelslog.WithLoggerProvider(NewSlogLoggerProvider(handler)))

	logger.Debug("hidden")
	logger.Warn("turn failed", "persona", "AI Socrates", "round", 2, "error", errors.New("outage"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record above the level, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected JSON record, got %v", err)
	}
	if record["msg"] != "turn failed" || record["level"] != "WARN" || record["scope"] != "test-scope" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["persona"] != "AI Socrates" || record["round"] != float64(2) || record["error"] != "outage" {
		t.Fatalf("unexpected attributes %v", record)
	}
}
