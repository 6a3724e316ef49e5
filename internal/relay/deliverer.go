package relay

import (
	"context"
	"os"
	"strings"
	"time"

	"log/slog"

	"soundrelay/internal/config"
	"soundrelay/internal/logging"
	"soundrelay/internal/naming"
	"soundrelay/internal/notifications"
	"soundrelay/internal/queue"
	"soundrelay/internal/retry"
	"soundrelay/internal/services"
	"soundrelay/internal/stage"
	"soundrelay/internal/telegram"
)

// Delivery modes recorded per track and on the job.
const (
	DeliveryAudio    = "audio"
	DeliveryDocument = "document"
	DeliveryMixed    = "mixed"
)

// Messenger is the chat surface the deliverer needs.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SendAudio(ctx context.Context, chatID int64, audio telegram.Audio) (*telegram.Message, error)
	SendDocument(ctx context.Context, chatID int64, doc telegram.Document) (*telegram.Message, error)
}

// Deliverer uploads tagged tracks to the requesting chat and cleans up the
// working directory afterwards.
type Deliverer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   Messenger
	notifier notifications.Service
}

// NewDeliverer constructs the delivery handler using default dependencies.
func NewDeliverer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Deliverer {
	client, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.UploadTimeout)
	if err != nil {
		logger.Warn("telegram client unavailable", logging.Error(err))
	}
	var messenger Messenger
	if client != nil {
		messenger = client
	}
	return NewDelivererWithDependencies(cfg, store, logger, messenger, notifications.NewService(cfg))
}

// NewDelivererWithDependencies allows injecting all collaborators (used in tests).
func NewDelivererWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Messenger, notifier notifications.Service) *Deliverer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "deliverer"))
	}
	return &Deliverer{store: store, cfg: cfg, logger: stageLogger, client: client, notifier: notifier}
}

func (d *Deliverer) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	job.ErrorMessage = ""
	job.ProgressMsg = "Uploading audio"
	logger.Info("starting delivery", logging.Int("track_count", job.TrackCount))
	return nil
}

func (d *Deliverer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	if d.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "deliver", "telegram client",
			"Telegram unavailable; check the bot token setting", nil)
	}

	tracks, err := stage.JobTracks(job)
	if err != nil {
		return err
	}

	policy := retry.Policy{
		Attempts:  d.cfg.Delivery.Attempts,
		MinWait:   time.Duration(d.cfg.Delivery.BackoffMinSecs) * time.Second,
		MaxWait:   time.Duration(d.cfg.Delivery.BackoffMaxSecs) * time.Second,
		Retryable: telegram.Retryable,
	}

	audioSent, documentSent := 0, 0
	for i := range tracks {
		track := &tracks[i]
		if strings.TrimSpace(track.FilePath) == "" {
			return services.Wrap(
				services.ErrValidation, "deliver", "track file",
				"Track file missing; rerun download", nil)
		}

		audio := telegram.Audio{
			Path:     track.FilePath,
			Title:    track.Title,
			Artist:   track.Artist,
			Duration: track.Duration,
			ReplyTo:  job.MessageID,
		}
		sendErr := retry.Do(ctx, policy, func(ctx context.Context) error {
			_, err := d.client.SendAudio(ctx, job.ChatID, audio)
			return err
		})
		if sendErr == nil {
			track.Delivery = DeliveryAudio
			audioSent++
			continue
		}
		logger.Warn(
			"audio upload failed, falling back to document",
			logging.String("file", track.FilePath),
			logging.Error(sendErr),
		)

		doc := telegram.Document{
			Path:     track.FilePath,
			FileName: naming.DeliveryFileName(track.Artist, track.Title, track.Ext),
			ReplyTo:  job.MessageID,
		}
		if _, docErr := d.client.SendDocument(ctx, job.ChatID, doc); docErr != nil {
			return services.Wrap(
				services.ErrTransient, "deliver", "upload",
				"Could not deliver "+strings.TrimSpace(track.Title), docErr)
		}
		track.Delivery = DeliveryDocument
		documentSent++
	}

	switch {
	case documentSent == 0:
		job.DeliveryMode = DeliveryAudio
	case audioSent == 0:
		job.DeliveryMode = DeliveryDocument
	default:
		job.DeliveryMode = DeliveryMixed
	}
	if err := job.SetTracks(tracks); err != nil {
		return services.Wrap(services.ErrTransient, "deliver", "store tracks", "Failed to record delivery state", err)
	}

	if workDir := strings.TrimSpace(job.WorkDir); workDir != "" {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("work dir cleanup failed", logging.String("work_dir", workDir), logging.Error(err))
		}
	}

	job.ProgressMsg = "Delivered"
	logger.Info(
		"delivery completed",
		logging.Int("audio", audioSent),
		logging.Int("documents", documentSent),
	)
	if d.notifier != nil {
		if err := d.notifier.NotifyRelayCompleted(ctx, job.DisplayTitle(), len(tracks)); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (d *Deliverer) HealthCheck(ctx context.Context) stage.Health {
	if d.client == nil {
		return stage.Unhealthy("deliverer", "telegram client not configured")
	}
	return stage.Healthy("deliverer")
}
