package tagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Tags holds the metadata embedded into a downloaded audio file.
type Tags struct {
	Album       string
	AlbumArtist string
	TrackNumber int
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg tag embedding.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an ffmpeg tagging client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Embed writes tags into src by transcoding-free stream copy into tmpPath,
// then renames tmpPath over src. On ffmpeg failure tmpPath is removed and
// src is left untouched.
func (c *Client) Embed(ctx context.Context, src, tmpPath string, tags Tags) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return errors.New("source path required")
	}
	tmpPath = strings.TrimSpace(tmpPath)
	if tmpPath == "" {
		return errors.New("temporary path required")
	}

	track := tags.TrackNumber
	if track <= 0 {
		track = 1
	}

	tagCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		tagCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-i", src,
		"-metadata", "album=" + tags.Album,
		"-metadata", "album_artist=" + tags.AlbumArtist,
		"-metadata", fmt.Sprintf("track=%02d", track),
		"-codec", "copy",
		tmpPath,
	}
	if err := c.exec.Run(tagCtx, c.binary, args); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("embed tags: %w", err)
	}

	if err := os.Rename(tmpPath, src); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace tagged file: %w", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			// ffmpeg reports everything on stderr; keep the tail for context.
			lines := strings.Split(detail, "\n")
			if len(lines) > 4 {
				lines = lines[len(lines)-4:]
			}
			return fmt.Errorf("%w: %s", err, strings.Join(lines, " "))
		}
		return err
	}
	return nil
}
