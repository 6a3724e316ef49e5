package relay

import (
	"context"
	"os"
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

// playlistTemplate names playlist downloads by playlist position so files
// sort in playlist order.
const playlistTemplate = "%(playlist_index)02d %(title)s.%(ext)s"

// Fetcher downloads a URL as audio into the given output template.
type Fetcher interface {
	Download(ctx context.Context, url, outputTemplate string) error
}

// Downloader fetches audio files for every track of a job.
type Downloader struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client Fetcher
}

// NewDownloader constructs the download handler using default dependencies.
func NewDownloader(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Downloader {
	client, err := extractor.New(cfg.ExtractorBinary(), cfg.Extractor.ProbeTimeout, cfg.Extractor.DownloadTimeout)
	if err != nil {
		logger.Warn("extractor client unavailable", logging.Error(err))
	}
	return NewDownloaderWithClient(cfg, store, logger, client)
}

// NewDownloaderWithClient allows injecting the download client (used in tests).
func NewDownloaderWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Fetcher) *Downloader {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "downloader"))
	}
	return &Downloader{store: store, cfg: cfg, logger: stageLogger, client: client}
}

func (d *Downloader) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	job.ErrorMessage = ""
	job.ProgressMsg = "Downloading audio"
	if strings.TrimSpace(job.WorkDir) == "" {
		return services.Wrap(
			services.ErrValidation, "download", "work dir",
			"Job has no working directory; rerun extraction", nil)
	}
	logger.Info("starting download", logging.String("work_dir", job.WorkDir))
	return nil
}

func (d *Downloader) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	if d.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "download", "extractor client",
			"Extractor unavailable; check the extractor binary setting", nil)
	}

	tracks, err := stage.JobTracks(job)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration, "download", "create work dir",
			"Failed to create working directory; set download_dir to a writable location", err)
	}

	template := filepath.Join(job.WorkDir, playlistTemplate)
	if len(tracks) == 1 {
		template = filepath.Join(job.WorkDir, naming.OutputTemplate(1, tracks[0].Title))
	}
	if err := d.client.Download(ctx, job.URL, template); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "download", "fetch audio",
			"Audio download failed", err)
	}

	names, err := listFiles(job.WorkDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "list work dir", "Failed to inspect downloaded files", err)
	}
	if len(names) == 0 {
		return services.Wrap(
			services.ErrExternalTool, "download", "locate files",
			"Download reported success but produced no files", nil)
	}

	for i := range tracks {
		name, ok := naming.MatchFile(tracks[i].Title, names)
		if !ok && len(names) == len(tracks) {
			// The extractor sometimes names output differently than the
			// probe reported. With one file per track, directory listing
			// order lines up with track order because the output template
			// numbers files by playlist position.
			name, ok = names[i], true
		}
		if !ok {
			return services.Wrap(
				services.ErrExternalTool, "download", "locate files",
				"Downloaded file missing for track "+strings.TrimSpace(tracks[i].Title), nil)
		}
		tracks[i].FilePath = filepath.Join(job.WorkDir, name)
		if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
			tracks[i].Ext = ext
		}
	}
	if err := job.SetTracks(tracks); err != nil {
		return services.Wrap(services.ErrTransient, "download", "store tracks", "Failed to record downloaded files", err)
	}

	job.ProgressMsg = "Audio downloaded"
	logger.Info("download completed", logging.Int("file_count", len(names)))
	return nil
}

func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	if d.client == nil {
		return stage.Unhealthy("downloader", "extractor client not configured")
	}
	if strings.TrimSpace(d.cfg.Paths.DownloadDir) == "" {
		return stage.Unhealthy("downloader", "download directory not configured")
	}
	return stage.Healthy("downloader")
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
