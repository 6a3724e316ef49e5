package stage

import (
	"errors"
	"testing"

	"soundrelay/internal/queue"
	"soundrelay/internal/services"
)

func TestJobTracks_Valid(t *testing.T) {
	job := &queue.Job{TracksJSON: `[{"number":1,"artist":"Burial","title":"Archangel","ext":"mp3"}]`}
	tracks, err := JobTracks(job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Archangel" {
		t.Fatalf("unexpected tracks: %+v", tracks)
	}
}

func TestJobTracks_Empty(t *testing.T) {
	_, err := JobTracks(&queue.Job{})
	if err == nil {
		t.Fatal("expected error for empty track list")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobTracks_Invalid(t *testing.T) {
	_, err := JobTracks(&queue.Job{TracksJSON: "{invalid json"})
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
