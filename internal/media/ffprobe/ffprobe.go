package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// DurationSeconds probes the container duration of the media file at path,
// rounded down to whole seconds. The probe is best-effort at call sites:
// callers typically log and continue on error.
func DurationSeconds(ctx context.Context, binary string, path string) (int, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe duration: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--", path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return parseDuration(string(output))
}

func parseDuration(output string) (int, error) {
	value := strings.TrimSpace(output)
	if value == "" {
		return 0, errors.New("ffprobe duration: empty output")
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: parse %q: %w", value, err)
	}
	if math.IsNaN(seconds) || seconds < 0 {
		return 0, fmt.Errorf("ffprobe duration: invalid value %q", value)
	}
	return int(seconds), nil
}
