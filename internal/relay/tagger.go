package relay

import (
	"context"
	"path/filepath"
	"strings"

	"log/slog"

	"soundrelay/internal/config"
	"soundrelay/internal/logging"
	"soundrelay/internal/media/ffprobe"
	"soundrelay/internal/media/tagger"
	"soundrelay/internal/naming"
	"soundrelay/internal/queue"
	"soundrelay/internal/services"
	"soundrelay/internal/stage"
)

// Embedder writes metadata tags into a downloaded audio file.
type Embedder interface {
	Embed(ctx context.Context, src, tmpPath string, tags tagger.Tags) error
}

// Tagger embeds album metadata into each track and probes durations.
type Tagger struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   Embedder
	duration func(ctx context.Context, binary, path string) (int, error)
}

// NewTagger constructs the tagging handler using default dependencies.
func NewTagger(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Tagger {
	client, err := tagger.New(cfg.FFmpegBinary(), cfg.Media.TagTimeout)
	if err != nil {
		logger.Warn("tagging client unavailable", logging.Error(err))
	}
	return NewTaggerWithClient(cfg, store, logger, client)
}

// NewTaggerWithClient allows injecting the embedder (used in tests).
func NewTaggerWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Embedder) *Tagger {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "tagger"))
	}
	return &Tagger{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		client:   client,
		duration: ffprobe.DurationSeconds,
	}
}

func (t *Tagger) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	job.ErrorMessage = ""
	job.ProgressMsg = "Embedding tags"
	logger.Info("starting tagging", logging.Int("track_count", job.TrackCount))
	return nil
}

func (t *Tagger) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	if t.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "tag", "ffmpeg client",
			"Tagging unavailable; check the ffmpeg binary setting", nil)
	}

	tracks, err := stage.JobTracks(job)
	if err != nil {
		return err
	}

	album := naming.SanitizeTitle(job.Title)
	albumArtist := naming.SanitizeArtist(job.Artist)
	for i := range tracks {
		track := &tracks[i]
		if strings.TrimSpace(track.FilePath) == "" {
			return services.Wrap(
				services.ErrValidation, "tag", "track file",
				"Track file missing; rerun download", nil)
		}

		tmpPath := filepath.Join(filepath.Dir(track.FilePath), naming.TaggedFileName(track.Number, track.Title, track.Ext))
		tags := tagger.Tags{
			Album:       album,
			AlbumArtist: albumArtist,
			TrackNumber: track.Number,
		}
		if err := t.client.Embed(ctx, track.FilePath, tmpPath, tags); err != nil {
			return services.Wrap(
				services.ErrExternalTool, "tag", "embed tags",
				"Tag embedding failed for "+strings.TrimSpace(track.Title), err)
		}

		// Duration powers the chat player seek bar. A probe miss is not
		// worth failing the job over.
		if seconds, err := t.duration(ctx, t.cfg.FFprobeBinary(), track.FilePath); err != nil {
			logger.Warn("duration probe failed", logging.String("file", track.FilePath), logging.Error(err))
		} else {
			track.Duration = seconds
		}
	}

	if err := job.SetTracks(tracks); err != nil {
		return services.Wrap(services.ErrTransient, "tag", "store tracks", "Failed to record tagged files", err)
	}
	job.ProgressMsg = "Tags embedded"
	logger.Info("tagging completed", logging.Int("track_count", len(tracks)))
	return nil
}

func (t *Tagger) HealthCheck(ctx context.Context) stage.Health {
	if t.client == nil {
		return stage.Unhealthy("tagger", "ffmpeg client not configured")
	}
	return stage.Healthy("tagger")
}
