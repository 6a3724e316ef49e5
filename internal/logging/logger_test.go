package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"soundrelay/internal/services"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar, false))

	logger.With(String(FieldComponent, "deliverer")).Info("audio sent",
		String("title", "Night Drive"),
		Int("attempt", 2),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO deliverer: audio sent") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "title=\"Night Drive\"") {
		t.Fatalf("expected quoted title attr, got %q", line)
	}
	if !strings.Contains(line, "attempt=2") {
		t.Fatalf("expected attempt attr, got %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, levelVar, false))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be suppressed: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar, false))

	ctx := services.WithJobID(context.Background(), 17)
	ctx = services.WithStage(ctx, "downloading")
	ctx = services.WithChatID(ctx, int64(99))

	WithContext(ctx, logger).Info("working")

	line := buf.String()
	for _, want := range []string{"job_id=17", "stage=downloading", "chat_id=99"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestWithContextNilLoggerYieldsNoop(t *testing.T) {
	logger := WithContext(context.Background(), nil)
	// Must not panic and must stay silent.
	logger.Info("dropped")
}
