package tagger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"soundrelay/internal/media/tagger"
)

type fakeExecutor struct {
	binary string
	args   []string
	err    error
	onRun  func(binary string, args []string) error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string) error {
	f.binary = binary
	f.args = args
	if f.onRun != nil {
		return f.onRun(binary, args)
	}
	return f.err
}

func TestEmbedRenamesTaggedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "01 Archangel.mp3")
	tmp := filepath.Join(dir, "01 Archangel (tagged).mp3")
	if err := os.WriteFile(src, []byte("original"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	exec := &fakeExecutor{
		onRun: func(_ string, _ []string) error {
			return os.WriteFile(tmp, []byte("tagged"), 0o644)
		},
	}
	client, err := tagger.New("ffmpeg", 60, tagger.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tags := tagger.Tags{Album: "Untrue", AlbumArtist: "Burial", TrackNumber: 1}
	if err := client.Embed(context.Background(), src, tmp, tags); err != nil {
		t.Fatalf("embed: %v", err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "tagged" {
		t.Fatalf("expected tagged content at source path, got %q", data)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("expected temporary file to be gone after rename")
	}
}

func TestEmbedBuildsExpectedArguments(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "track.mp3")
	tmp := filepath.Join(dir, "track (tagged).mp3")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	exec := &fakeExecutor{
		onRun: func(_ string, _ []string) error {
			return os.WriteFile(tmp, nil, 0o644)
		},
	}
	client, err := tagger.New("/usr/bin/ffmpeg", 0, tagger.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tags := tagger.Tags{Album: "Untrue", AlbumArtist: "Burial", TrackNumber: 3}
	if err := client.Embed(context.Background(), src, tmp, tags); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if exec.binary != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
	want := []string{
		"-y",
		"-i", src,
		"-metadata", "album=Untrue",
		"-metadata", "album_artist=Burial",
		"-metadata", "track=03",
		"-codec", "copy",
		tmp,
	}
	if len(exec.args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(exec.args), exec.args)
	}
	for i, arg := range want {
		if exec.args[i] != arg {
			t.Fatalf("arg %d: expected %q, got %q", i, arg, exec.args[i])
		}
	}
}

func TestEmbedDefaultsTrackNumber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "track.mp3")
	tmp := filepath.Join(dir, "track (tagged).mp3")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	exec := &fakeExecutor{
		onRun: func(_ string, _ []string) error {
			return os.WriteFile(tmp, nil, 0o644)
		},
	}
	client, err := tagger.New("ffmpeg", 0, tagger.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Embed(context.Background(), src, tmp, tagger.Tags{Album: "A", AlbumArtist: "B"}); err != nil {
		t.Fatalf("embed: %v", err)
	}

	found := false
	for _, arg := range exec.args {
		if arg == "track=01" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected track=01 in args, got %v", exec.args)
	}
}

func TestEmbedCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "track.mp3")
	tmp := filepath.Join(dir, "track (tagged).mp3")
	if err := os.WriteFile(src, []byte("original"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	exec := &fakeExecutor{
		onRun: func(_ string, _ []string) error {
			if err := os.WriteFile(tmp, []byte("partial"), 0o644); err != nil {
				return err
			}
			return errors.New("ffmpeg exploded")
		},
	}
	client, err := tagger.New("ffmpeg", 0, tagger.WithExecutor(exec))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.Embed(context.Background(), src, tmp, tagger.Tags{}); err == nil {
		t.Fatal("expected an error from failed embed")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("expected partial temporary file to be removed")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("source should be untouched after failure, got %q", data)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := tagger.New("  ", 0); err == nil {
		t.Fatal("expected an error for blank binary")
	}
}
