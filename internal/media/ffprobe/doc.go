// Package ffprobe wraps the ffprobe CLI for duration probing of
// downloaded audio files.
package ffprobe
