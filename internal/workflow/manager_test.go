package workflow

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"soundrelay/internal/config"
	"soundrelay/internal/logging"
	"soundrelay/internal/queue"
	"soundrelay/internal/relay"
	"soundrelay/internal/services"
	"soundrelay/internal/stage"
	"soundrelay/internal/telegram"
)

type fakeHandler struct {
	name       string
	prepareErr error
	execErr    error
	execFn     func(ctx context.Context, job *queue.Job) error

	mu       sync.Mutex
	executed int
}

func (f *fakeHandler) Prepare(ctx context.Context, job *queue.Job) error {
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.executed++
	f.mu.Unlock()
	if f.execFn != nil {
		return f.execFn(ctx, job)
	}
	return f.execErr
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func (f *fakeHandler) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executed
}

type recordingMessenger struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingMessenger) SendMessage(_ context.Context, _ int64, text string) (*telegram.Message, error) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	return &telegram.Message{}, nil
}

func (r *recordingMessenger) SendAudio(context.Context, int64, telegram.Audio) (*telegram.Message, error) {
	return &telegram.Message{}, nil
}

func (r *recordingMessenger) SendDocument(context.Context, int64, telegram.Document) (*telegram.Message, error) {
	return &telegram.Message{}, nil
}

func (r *recordingMessenger) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

func newTestManager(t *testing.T, set StageSet, messenger *recordingMessenger) (*Manager, *queue.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DownloadDir = t.TempDir()
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	cfg.Notifications.NtfyTopic = ""

	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var msg relay.Messenger
	if messenger != nil {
		msg = messenger
	}
	manager := NewManager(&cfg, store, logging.NewNop(), msg)
	manager.ConfigureStages(set)
	return manager, store
}

func passthroughStages() StageSet {
	return StageSet{
		Extractor:  &fakeHandler{name: "extract"},
		Downloader: &fakeHandler{name: "download"},
		Tagger:     &fakeHandler{name: "tag"},
		Deliverer:  &fakeHandler{name: "deliver"},
	}
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), id)
	t.Fatalf("job never reached %s, stuck at %s (%s)", want, job.Status, job.ErrorMessage)
	return nil
}

func TestManagerProcessesJobThroughAllStages(t *testing.T) {
	set := passthroughStages()
	manager, store := newTestManager(t, set, nil)

	job, err := store.NewJob(context.Background(), 42, 7, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if final.ErrorMessage != "" {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
	for _, handler := range []*fakeHandler{
		set.Extractor.(*fakeHandler),
		set.Downloader.(*fakeHandler),
		set.Tagger.(*fakeHandler),
		set.Deliverer.(*fakeHandler),
	} {
		if handler.executions() != 1 {
			t.Fatalf("handler %s executed %d times", handler.name, handler.executions())
		}
	}
	if final.RequestID == "" {
		t.Fatal("expected a request id on the processed job")
	}
}

func TestManagerMarksFailureAndRepliesToChat(t *testing.T) {
	set := passthroughStages()
	set.Extractor = &fakeHandler{
		name:    "extract",
		execErr: services.Wrap(services.ErrValidation, "extract", "probe metadata", "Could not read track metadata from the link", nil),
	}
	messenger := &recordingMessenger{}
	manager, store := newTestManager(t, set, messenger)

	job, err := store.NewJob(context.Background(), 42, 7, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.ErrorMessage == "" {
		t.Fatal("expected failure message on job")
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(messenger.messages()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	replies := messenger.messages()
	if len(replies) == 0 {
		t.Fatal("expected a failure reply to the chat")
	}
	if replies[0] == "" || replies[0][:6] != "Error:" {
		t.Fatalf("unexpected reply %q", replies[0])
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := config.Default()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := NewManager(&cfg, store, logging.NewNop(), nil)
	if err := manager.Start(context.Background()); err == nil {
		manager.Stop()
		t.Fatal("expected error when stages are not configured")
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	manager, store := newTestManager(t, passthroughStages(), nil)
	if _, err := store.NewJob(context.Background(), 1, 1, "https://soundcloud.com/a/b"); err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary := manager.Status(context.Background())
	if summary.Running {
		t.Fatal("manager should not report running before Start")
	}
	if len(summary.StageHealth) != 4 {
		t.Fatalf("expected 4 stage health entries, got %d", len(summary.StageHealth))
	}
	if summary.QueueStats["pending"] != 1 {
		t.Fatalf("unexpected queue stats %v", summary.QueueStats)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()
	if summary := manager.Status(context.Background()); !summary.Running {
		t.Fatal("manager should report running after Start")
	}
}

func TestManagerResetsStuckJobsOnStart(t *testing.T) {
	manager, store := newTestManager(t, passthroughStages(), nil)

	job, err := store.NewJob(context.Background(), 1, 1, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusDownloading
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	// The rollback puts the job at extracted; the passthrough stages then
	// carry it to completion.
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
}
