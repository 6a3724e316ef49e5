package services_test

import (
	"errors"
	"testing"

	"soundrelay/internal/services"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "downloading", "run yt-dlp", "exit status 1", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	want := "external tool error: downloading: run yt-dlp: exit status 1"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "delivering", "", "", errors.New("socket closed"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("no such file")
	err := services.Wrap(services.ErrNotFound, "downloading", "verify output", "", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestUserMessageStripsSentinelPrefix(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "tagging", "run ffmpeg", "exit status 1", nil)
	got := services.UserMessage(err)
	if got != "tagging: run ffmpeg: exit status 1" {
		t.Fatalf("unexpected user message: %q", got)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}
