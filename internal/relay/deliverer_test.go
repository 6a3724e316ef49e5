package relay

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"soundrelay/internal/logging"
	"soundrelay/internal/queue"
	"soundrelay/internal/services"
	"soundrelay/internal/telegram"
)

type fakeMessenger struct {
	audioErrs  []error
	audioCalls []telegram.Audio
	docCalls   []telegram.Document
	docErr     error
	textCalls  []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ int64, text string) (*telegram.Message, error) {
	f.textCalls = append(f.textCalls, text)
	return &telegram.Message{}, nil
}

func (f *fakeMessenger) SendAudio(_ context.Context, _ int64, audio telegram.Audio) (*telegram.Message, error) {
	f.audioCalls = append(f.audioCalls, audio)
	if len(f.audioErrs) > 0 {
		err := f.audioErrs[0]
		f.audioErrs = f.audioErrs[1:]
		return nil, err
	}
	return &telegram.Message{}, nil
}

func (f *fakeMessenger) SendDocument(_ context.Context, _ int64, doc telegram.Document) (*telegram.Message, error) {
	f.docCalls = append(f.docCalls, doc)
	if f.docErr != nil {
		return nil, f.docErr
	}
	return &telegram.Message{}, nil
}

func deliveryJob(t *testing.T) *queue.Job {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "01 Archangel.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job := &queue.Job{ID: 4, ChatID: 42, Artist: "Burial", Title: "Archangel", WorkDir: dir}
	if err := job.SetTracks([]queue.Track{{Number: 1, Artist: "Burial", Title: "Archangel", Ext: "mp3", FilePath: path, Duration: 238}}); err != nil {
		t.Fatalf("set tracks: %v", err)
	}
	return job
}

func TestDelivererExecuteSendsAudioAndCleansUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Delivery.Attempts = 1
	messenger := &fakeMessenger{}
	handler := NewDelivererWithDependencies(cfg, nil, logging.NewNop(), messenger, nil)

	job := deliveryJob(t)
	workDir := job.WorkDir
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(messenger.audioCalls) != 1 {
		t.Fatalf("expected one audio upload, got %d", len(messenger.audioCalls))
	}
	audio := messenger.audioCalls[0]
	if audio.Artist != "Burial" || audio.Title != "Archangel" || audio.Duration != 238 {
		t.Fatalf("unexpected audio payload %+v", audio)
	}
	if job.DeliveryMode != DeliveryAudio {
		t.Fatalf("unexpected delivery mode %q", job.DeliveryMode)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatal("expected work dir to be removed after delivery")
	}
}

func TestDelivererExecuteRetriesTransientUploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.Delivery.Attempts = 3
	cfg.Delivery.BackoffMinSecs = 0
	cfg.Delivery.BackoffMaxSecs = 0
	messenger := &fakeMessenger{audioErrs: []error{
		&telegram.APIError{Code: http.StatusBadGateway},
	}}
	handler := NewDelivererWithDependencies(cfg, nil, logging.NewNop(), messenger, nil)

	job := deliveryJob(t)
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(messenger.audioCalls) != 2 {
		t.Fatalf("expected retry after transient failure, got %d calls", len(messenger.audioCalls))
	}
	if len(messenger.docCalls) != 0 {
		t.Fatalf("expected no document fallback, got %d", len(messenger.docCalls))
	}
}

func TestDelivererExecuteFallsBackToDocument(t *testing.T) {
	cfg := testConfig(t)
	cfg.Delivery.Attempts = 1
	messenger := &fakeMessenger{audioErrs: []error{
		&telegram.APIError{Code: http.StatusBadRequest, Description: "audio rejected"},
	}}
	handler := NewDelivererWithDependencies(cfg, nil, logging.NewNop(), messenger, nil)

	job := deliveryJob(t)
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(messenger.docCalls) != 1 {
		t.Fatalf("expected one document fallback, got %d", len(messenger.docCalls))
	}
	if got := messenger.docCalls[0].FileName; got != "Burial - Archangel.mp3" {
		t.Fatalf("unexpected document name %q", got)
	}
	if job.DeliveryMode != DeliveryDocument {
		t.Fatalf("unexpected delivery mode %q", job.DeliveryMode)
	}
	tracks, _ := job.Tracks()
	if tracks[0].Delivery != DeliveryDocument {
		t.Fatalf("unexpected track delivery %q", tracks[0].Delivery)
	}
}

func TestDelivererExecuteFailsWhenFallbackFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Delivery.Attempts = 1
	messenger := &fakeMessenger{
		audioErrs: []error{&telegram.APIError{Code: http.StatusBadRequest}},
		docErr:    errors.New("document rejected"),
	}
	handler := NewDelivererWithDependencies(cfg, nil, logging.NewNop(), messenger, nil)

	job := deliveryJob(t)
	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, statErr := os.Stat(job.WorkDir); statErr != nil {
		t.Fatal("failure cleanup belongs to the workflow failure handler, not the stage")
	}
}
