package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"soundrelay/internal/config"
	"soundrelay/internal/logging"
	"soundrelay/internal/queue"
	"soundrelay/internal/stage"
	"soundrelay/internal/workflow"
)

type idleHandler struct{ name string }

func (h idleHandler) Prepare(context.Context, *queue.Job) error { return nil }
func (h idleHandler) Execute(context.Context, *queue.Job) error { return nil }
func (h idleHandler) HealthCheck(context.Context) stage.Health  { return stage.Healthy(h.name) }

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *queue.Store) {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := workflow.NewManager(cfg, store, logging.NewNop(), nil)
	manager.ConfigureStages(workflow.StageSet{
		Extractor:  idleHandler{name: "extract"},
		Downloader: idleHandler{name: "download"},
		Tagger:     idleHandler{name: "tag"},
		Deliverer:  idleHandler{name: "deliver"},
	})

	d, err := New(cfg, store, logging.NewNop(), manager, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, store
}

func daemonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.APIBind = ""
	cfg.Workflow.QueuePollInterval = 0
	cfg.Notifications.NtfyTopic = ""
	return &cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := daemonConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected running daemon, got %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected stopped daemon")
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := daemonConfig(t)
	first, _ := newTestDaemon(t, cfg)
	second, _ := newTestDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail the lock")
	}
}

func TestDaemonQueueOperations(t *testing.T) {
	cfg := daemonConfig(t)
	d, store := newTestDaemon(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, 42, 1, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusFailed
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	retried, err := d.RetryFailed(ctx, nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried job, got %d", retried)
	}

	jobs, err := d.ListQueue(ctx, []queue.Status{queue.StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 pending job, got %d", len(jobs))
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared job, got %d", cleared)
	}
}

func TestAPIServerServesHealthAndQueue(t *testing.T) {
	cfg := daemonConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	d, store := newTestDaemon(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, 42, 1, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	// Park the job where the workflow will not pick it up, so the queue
	// endpoint has something stable to report.
	job.Status = queue.StatusFailed
	job.ErrorMessage = "boom"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	base := fmt.Sprintf("http://%s", d.api.addr())
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}

	resp, err = client.Get(base + "/api/queue?status=failed")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Jobs []struct {
			URL    string `json:"url"`
			Status string `json:"status"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(payload.Jobs) != 1 || payload.Jobs[0].Status != "failed" {
		t.Fatalf("unexpected queue payload %+v", payload)
	}
}
