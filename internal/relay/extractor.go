package relay

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"soundrelay/internal/config"
	"soundrelay/internal/extractor"
	"soundrelay/internal/logging"
	"soundrelay/internal/naming"
	"soundrelay/internal/queue"
	"soundrelay/internal/services"
	"soundrelay/internal/stage"
)

// Prober fetches media metadata for a URL without downloading anything.
type Prober interface {
	Probe(ctx context.Context, url string) ([]extractor.Metadata, error)
}

// Extractor resolves a link into track metadata and a working directory.
type Extractor struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client Prober
}

// NewExtractor constructs the extraction handler using default dependencies.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	client, err := extractor.New(cfg.ExtractorBinary(), cfg.Extractor.ProbeTimeout, cfg.Extractor.DownloadTimeout)
	if err != nil {
		logger.Warn("extractor client unavailable", logging.Error(err))
	}
	return NewExtractorWithClient(cfg, store, logger, client)
}

// NewExtractorWithClient allows injecting the probe client (used in tests).
func NewExtractorWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Prober) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "extractor"))
	}
	return &Extractor{store: store, cfg: cfg, logger: stageLogger, client: client}
}

func (e *Extractor) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)
	job.ErrorMessage = ""
	job.ProgressMsg = "Extracting metadata"
	logger.Info("starting extraction", logging.String("url", strings.TrimSpace(job.URL)))
	return nil
}

func (e *Extractor) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)
	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "extract", "probe client",
			"Extractor unavailable; check the extractor binary setting", nil)
	}

	entries, err := e.client.Probe(ctx, job.URL)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "extract", "probe metadata",
			"Could not read track metadata from the link", err)
	}

	limit := e.cfg.Extractor.PlaylistLimit
	if limit > 0 && len(entries) > limit {
		return services.Wrap(
			services.ErrValidation, "extract", "playlist size",
			fmt.Sprintf("Playlist has %d tracks; the limit is %d", len(entries), limit), nil)
	}

	tracks := make([]queue.Track, 0, len(entries))
	for i, entry := range entries {
		tracks = append(tracks, queue.Track{
			Number: i + 1,
			Artist: entry.Artist,
			Title:  entry.Title,
			Ext:    entry.Ext,
		})
	}
	if err := job.SetTracks(tracks); err != nil {
		return services.Wrap(services.ErrTransient, "extract", "store tracks", "Failed to record track metadata", err)
	}

	job.Artist = strings.TrimSpace(entries[0].Artist)
	job.Title = strings.TrimSpace(entries[0].Title)
	job.WorkDir = filepath.Join(e.cfg.Paths.DownloadDir, naming.TrackFolder(job.Artist, job.Title))
	job.ProgressMsg = "Metadata extracted"

	logger.Info(
		"extraction completed",
		logging.String("artist", job.Artist),
		logging.String("title", job.Title),
		logging.Int("track_count", len(tracks)),
		logging.String("work_dir", job.WorkDir),
	)
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if e.client == nil {
		return stage.Unhealthy("extractor", "probe client not configured")
	}
	return stage.Healthy("extractor")
}
