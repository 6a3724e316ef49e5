package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// metadataSeparator splits the uploader/title/ext fields in probe output.
// Chosen because it cannot appear in yt-dlp field values.
const metadataSeparator = "|||"

// probeTemplate is the --print template yielding one line per media entry.
const probeTemplate = "%(uploader)s" + metadataSeparator + "%(title)s" + metadataSeparator + "%(ext)s"

// Metadata describes one media entry reported by the extractor.
type Metadata struct {
	Artist string
	Title  string
	Ext    string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
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

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	exec            Executor
}

// New constructs a yt-dlp client.
func New(binary string, probeTimeoutSeconds, downloadTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("extractor binary required")
	}
	client := &Client{
		binary:          binary,
		probeTimeout:    time.Duration(probeTimeoutSeconds) * time.Second,
		downloadTimeout: time.Duration(downloadTimeoutSeconds) * time.Second,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe fetches metadata for the given URL without downloading anything.
// Playlist URLs yield one entry per playlist item, in playlist order.
func (c *Client) Probe(ctx context.Context, url string) ([]Metadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url required")
	}

	probeCtx := ctx
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	output, err := c.exec.Run(probeCtx, c.binary, []string{"--print", probeTemplate, url})
	if err != nil {
		return nil, fmt.Errorf("probe metadata: %w", err)
	}

	entries, err := parseMetadata(string(output))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("probe metadata: no entries reported")
	}
	return entries, nil
}

// Download fetches the URL as audio with embedded metadata and thumbnail,
// writing output according to the template path.
func (c *Client) Download(ctx context.Context, url, outputTemplate string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("url required")
	}
	if strings.TrimSpace(outputTemplate) == "" {
		return errors.New("output template required")
	}

	dlCtx := ctx
	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}

	args := []string{
		"-x",
		"--embed-metadata",
		"--embed-thumbnail",
		"-o", outputTemplate,
		url,
	}
	if _, err := c.exec.Run(dlCtx, c.binary, args); err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	return nil
}

func parseMetadata(output string) ([]Metadata, error) {
	var entries []Metadata
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, metadataSeparator)
		if len(parts) < 3 {
			return nil, fmt.Errorf("probe metadata: malformed line %q", line)
		}
		entries = append(entries, Metadata{
			Artist: strings.TrimSpace(parts[0]),
			Title:  strings.TrimSpace(parts[1]),
			Ext:    strings.TrimSpace(parts[2]),
		})
	}
	return entries, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
