package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"snapback/internal/services"
)

func TestPrettyHandlerFormatsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger.Info("cache warmed", String(FieldComponent, "resolver"), String("origin", "download"))

	line := buf.String()
	if !strings.Contains(line, "INFO resolver: cache warmed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "origin=download") {
		t.Fatalf("missing attribute: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger.Warn("placement skipped", String("reason", "size mismatch at destination"))

	if !strings.Contains(buf.String(), `reason="size mismatch at destination"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	ctx := services.WithEntryID(context.Background(), "abc123")
	ctx = services.WithStage(ctx, "resolve")
	ctx = services.WithRunID(ctx, "run-1")

	WithContext(ctx, logger).Info("resolved")

	line := buf.String()
	for _, want := range []string{"entry_id=abc123", "stage=resolve", "run_id=run-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("verbose") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level should parse")
	}
}
