package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"log/slog"

	"soundrelay/internal/config"
	"soundrelay/internal/logging"
	"soundrelay/internal/queue"
	"soundrelay/internal/telegram"
)

const welcomeReply = "Send me a SoundCloud track or playlist link and I'll reply with the audio."

const invalidLinkReply = "Please send a valid SoundCloud track URL."

// BotAPI is the Telegram surface the intake needs.
type BotAPI interface {
	Token() string
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

// Intake receives Telegram updates, via long polling or webhook, and
// enqueues relay jobs for valid links.
type Intake struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	bot    BotAPI

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewIntake constructs the update intake.
func NewIntake(cfg *config.Config, store *queue.Store, logger *slog.Logger, bot BotAPI) *Intake {
	intakeLogger := logger
	if intakeLogger != nil {
		intakeLogger = intakeLogger.With(logging.String("component", "intake"))
	}
	return &Intake{cfg: cfg, store: store, logger: intakeLogger, bot: bot}
}

// Start begins receiving updates. With a webhook URL configured the intake
// registers it and serves the callback endpoint; otherwise it long-polls.
func (i *Intake) Start(ctx context.Context) error {
	if i.bot == nil {
		return errors.New("intake requires a telegram client")
	}
	if webhookURL := strings.TrimSpace(i.cfg.Telegram.WebhookURL); webhookURL != "" {
		return i.startWebhook(ctx, webhookURL)
	}
	return i.startPolling(ctx)
}

// Stop shuts down the webhook server, if any, and waits for the poll loop.
func (i *Intake) Stop() {
	if i.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = i.server.Shutdown(shutdownCtx)
		i.server = nil
	}
	if i.listener != nil {
		_ = i.listener.Close()
		i.listener = nil
	}
	i.wg.Wait()
}

func (i *Intake) startPolling(ctx context.Context) error {
	// A stale webhook registration blocks getUpdates.
	if err := i.bot.DeleteWebhook(ctx); err != nil {
		i.logger.Warn("webhook cleanup failed", logging.Error(err))
	}

	i.wg.Add(1)
	go i.pollLoop(ctx)
	return nil
}

func (i *Intake) pollLoop(ctx context.Context) {
	defer i.wg.Done()
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := i.bot.GetUpdates(ctx, offset, i.cfg.Telegram.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			i.logger.Warn("update poll failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(i.cfg.Workflow.ErrorRetryInterval) * time.Second):
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			i.handleUpdate(ctx, update)
		}
	}
}

func (i *Intake) startWebhook(ctx context.Context, webhookURL string) error {
	callback := strings.TrimRight(webhookURL, "/") + "/" + i.bot.Token()
	if err := i.bot.SetWebhook(ctx, callback); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+i.bot.Token(), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var update telegram.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			i.logger.Warn("webhook payload rejected", logging.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		i.handleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	listener, err := net.Listen("tcp", i.cfg.Telegram.WebhookBind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	i.listener = listener
	i.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := i.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("webhook server error", logging.Error(err))
		}
	}()

	i.logger.Info("webhook registered",
		logging.String("callback", strings.TrimRight(webhookURL, "/")+"/<token>"),
		logging.String("bind", listener.Addr().String()),
	)
	return nil
}

func (i *Intake) handleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	logger := i.logger.With(logging.Int64(logging.FieldChatID, chatID))

	if strings.HasPrefix(text, "/start") || strings.HasPrefix(text, "/help") {
		i.reply(ctx, logger, chatID, welcomeReply)
		return
	}

	link, err := ParseTrackURL(text)
	if err != nil {
		logger.Debug("rejected message", logging.String("reason", err.Error()))
		i.reply(ctx, logger, chatID, invalidLinkReply)
		return
	}

	job, err := i.store.NewJob(ctx, chatID, msg.MessageID, link)
	if err != nil {
		logger.Error("failed to enqueue job", logging.Error(err))
		i.reply(ctx, logger, chatID, "Something went wrong queueing that link. Please try again.")
		return
	}
	logger.Info("job queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("url", link),
	)
	i.reply(ctx, logger, chatID, "Processing your SoundCloud link...")
}

func (i *Intake) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if _, err := i.bot.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn("reply not delivered", logging.Error(err))
	}
}

// ParseTrackURL extracts the first SoundCloud link from a message.
// Scheme-less links are accepted; the downloader resolves them over https.
func ParseTrackURL(text string) (string, error) {
	for _, field := range strings.Fields(text) {
		if !strings.Contains(field, "://") {
			field = "https://" + field
		}
		parsed, err := url.Parse(field)
		if err != nil {
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "soundcloud.com" || strings.HasSuffix(host, ".soundcloud.com") {
			return parsed.String(), nil
		}
	}
	return "", errors.New("no soundcloud link found")
}
