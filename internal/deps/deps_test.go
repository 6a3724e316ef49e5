package deps_test

import (
	"testing"

	"soundrelay/internal/config"
	"soundrelay/internal/deps"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "missing-tool", Command: "soundrelay-definitely-not-installed"},
		{Name: "unconfigured", Command: " "},
	})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing binary to be reported unavailable")
	}
	if statuses[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
	if statuses[1].Available || statuses[1].Detail != "command not configured" {
		t.Fatalf("unexpected status for blank command: %+v", statuses[1])
	}
}

func TestRequirementsCoverPipelineTools(t *testing.T) {
	cfg := config.Default()
	reqs := deps.Requirements(&cfg)
	names := map[string]bool{}
	for _, req := range reqs {
		names[req.Name] = true
	}
	for _, want := range []string{"yt-dlp", "ffmpeg", "ffprobe"} {
		if !names[want] {
			t.Fatalf("expected requirement %q, got %+v", want, reqs)
		}
	}
}
