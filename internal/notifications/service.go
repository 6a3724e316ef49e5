package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"soundrelay/internal/config"
)

const userAgent = "soundrelay/0.1.0"

// Service defines the notification surface exposed to daemon and relay
// components.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, version string) error
	NotifyDaemonStopped(ctx context.Context) error
	NotifyRelayCompleted(ctx context.Context, title string, trackCount int) error
	NotifyRelayFailed(ctx context.Context, title string, err error) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		relay:     cfg.Notifications.Relay,
		errors:    cfg.Notifications.Errors,
		lifecycle: cfg.Notifications.Lifecycle,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	relay     bool
	errors    bool
	lifecycle bool
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, version string) error {
	if !n.lifecycle {
		return nil
	}
	version = strings.TrimSpace(version)
	message := "Daemon started"
	if version != "" {
		message = fmt.Sprintf("Daemon started (%s)", version)
	}
	data := payload{
		title:   "Soundrelay - Started",
		message: message,
		tags:    []string{"soundrelay", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:   "Soundrelay - Stopped",
		message: "Daemon stopped",
		tags:    []string{"soundrelay", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRelayCompleted(ctx context.Context, title string, trackCount int) error {
	if !n.relay {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Delivered: %s", title)
	if trackCount > 1 {
		message = fmt.Sprintf("Delivered: %s (%d tracks)", title, trackCount)
	}
	data := payload{
		title:   "Soundrelay - Delivered",
		message: message,
		tags:    []string{"soundrelay", "relay", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRelayFailed(ctx context.Context, title string, err error) error {
	if !n.relay && !n.errors {
		return nil
	}
	title = strings.TrimSpace(title)
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Soundrelay - Relay Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", title, detail),
		tags:     []string{"soundrelay", "relay", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Soundrelay - Error",
		message:  builder.String(),
		tags:     []string{"soundrelay", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Soundrelay - Test",
		message:  "Notification system test",
		tags:     []string{"soundrelay", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context, string) error           { return nil }
func (noopService) NotifyDaemonStopped(context.Context) error                   { return nil }
func (noopService) NotifyRelayCompleted(context.Context, string, int) error     { return nil }
func (noopService) NotifyRelayFailed(context.Context, string, error) error      { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
