package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"soundrelay/internal/config"
	"soundrelay/internal/notifications"
)

type recordedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyService(t *testing.T, configure func(*config.Config)) (notifications.Service, *[]recordedRequest) {
	t.Helper()
	requests := &[]recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*requests = append(*requests, recordedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Relay = true
	cfg.Notifications.Errors = true
	cfg.Notifications.Lifecycle = true
	if configure != nil {
		configure(&cfg)
	}
	return notifications.NewService(&cfg), requests
}

func TestNoopServiceWhenTopicUnset(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRelayCompleted(context.Background(), "Burial - Archangel", 1); err != nil {
		t.Fatalf("noop service returned error: %v", err)
	}
}

func TestNotifyRelayCompletedPublishes(t *testing.T) {
	svc, requests := newNtfyService(t, nil)
	if err := svc.NotifyRelayCompleted(context.Background(), "Burial - Untrue", 12); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Soundrelay - Delivered" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if !strings.Contains(got.body, "12 tracks") {
		t.Fatalf("expected track count in body, got %q", got.body)
	}
}

func TestNotifyRelayFailedSetsHighPriority(t *testing.T) {
	svc, requests := newNtfyService(t, nil)
	if err := svc.NotifyRelayFailed(context.Background(), "Burial - Archangel", errors.New("upload rejected")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	got := (*requests)[0]
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
	if !strings.Contains(got.body, "upload rejected") {
		t.Fatalf("expected error detail in body, got %q", got.body)
	}
}

func TestCategoryToggleSuppressesEvents(t *testing.T) {
	svc, requests := newNtfyService(t, func(cfg *config.Config) {
		cfg.Notifications.Lifecycle = false
	})
	if err := svc.NotifyDaemonStarted(context.Background(), "0.1.0"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected suppressed event, got %d requests", len(*requests))
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected test notification to pass through, got %d requests", len(*requests))
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Lifecycle = true
	svc := notifications.NewService(&cfg)

	err := svc.NotifyDaemonStopped(context.Background())
	if err == nil {
		t.Fatal("expected error from ntfy failure")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
