package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"soundrelay/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewJobAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 42, 7, "https://soundcloud.com/artist/track")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected assigned job id")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("unexpected status: %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.ChatID != 42 || fetched.MessageID != 7 {
		t.Fatalf("unexpected identity: chat=%d message=%d", fetched.ChatID, fetched.MessageID)
	}
	if fetched.URL != "https://soundcloud.com/artist/track" {
		t.Fatalf("unexpected url: %q", fetched.URL)
	}
}

func TestUpdatePersistsTracksAndStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, 1, 1, "https://soundcloud.com/a/b")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Artist = "Artist"
	job.Title = "Title"
	job.Status = queue.StatusExtracted
	if err := job.SetTracks([]queue.Track{{Number: 1, Artist: "Artist", Title: "Title", Ext: "mp3"}}); err != nil {
		t.Fatalf("SetTracks: %v", err)
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusExtracted {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
	tracks, err := fetched.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Title" || tracks[0].Ext != "mp3" {
		t.Fatalf("unexpected tracks: %+v", tracks)
	}
	if fetched.TrackCount != 1 {
		t.Fatalf("unexpected track count: %d", fetched.TrackCount)
	}
}

func TestUpdateMissingJobReturnsNotFound(t *testing.T) {
	store := openStore(t)
	job := &queue.Job{ID: 999, Status: queue.StatusPending}
	err := store.Update(context.Background(), job)
	if err == nil {
		t.Fatal("expected error for missing job")
	}
}

func TestNextForStatusReturnsOldest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, _ := store.NewJob(ctx, 1, 1, "https://soundcloud.com/a/1")
	if _, err := store.NewJob(ctx, 1, 2, "https://soundcloud.com/a/2"); err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	next, err := store.NextForStatus(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatus: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending job %d, got %+v", first.ID, next)
	}

	none, err := store.NextForStatus(ctx, queue.StatusDelivering)
	if err != nil {
		t.Fatalf("NextForStatus: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no delivering job, got %+v", none)
	}
}

func TestRetryFailedAndClear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, _ := store.NewJob(ctx, 1, 1, "https://soundcloud.com/a/1")
	job.Status = queue.StatusFailed
	job.ErrorMessage = "boom"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 job reset, got %d", reset)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusPending || fetched.ErrorMessage != "" {
		t.Fatalf("unexpected job after retry: %+v", fetched)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 job removed, got %d", removed)
	}
}

func TestResetStuckProcessingRollsBackOneStage(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, _ := store.NewJob(ctx, 1, 1, "https://soundcloud.com/a/1")
	job.Status = queue.StatusDownloading
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 job reset, got %d", affected)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusExtracted {
		t.Fatalf("expected rollback to extracted, got %s", fetched.Status)
	}
}

func TestHealthCountsByBucket(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	pending, _ := store.NewJob(ctx, 1, 1, "https://soundcloud.com/a/1")
	_ = pending
	inflight, _ := store.NewJob(ctx, 1, 2, "https://soundcloud.com/a/2")
	inflight.Status = queue.StatusDelivering
	_ = store.Update(ctx, inflight)
	done, _ := store.NewJob(ctx, 1, 3, "https://soundcloud.com/a/3")
	done.Status = queue.StatusCompleted
	_ = store.Update(ctx, done)

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 3 || summary.Pending != 1 || summary.Processing != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
