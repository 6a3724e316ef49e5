package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"soundrelay/internal/config"
	"soundrelay/internal/daemon"
	"soundrelay/internal/deps"
	"soundrelay/internal/ipc"
	"soundrelay/internal/logging"
	"soundrelay/internal/notifications"
	"soundrelay/internal/queue"
	"soundrelay/internal/relay"
	"soundrelay/internal/telegram"
	"soundrelay/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// SocketPath returns the IPC socket location for the given configuration.
func SocketPath(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return filepath.Join(os.TempDir(), "soundrelayd.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "soundrelayd.sock")
}

// PIDPath returns the daemon pid file location for the given configuration.
func PIDPath(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return filepath.Join(os.TempDir(), "soundrelayd.pid")
	}
	return filepath.Join(cfg.Paths.LogDir, "soundrelayd.pid")
}

// Run starts the soundrelay daemon runtime loop and blocks until shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "soundrelay.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	bot, err := buildBot(cfg)
	if err != nil {
		logger.Error("build telegram client", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, bot, notifier)
	registerStages(manager, cfg, store, logger, bot, notifier)

	intake := daemon.NewIntake(cfg, store, logger, bot)
	d, err := daemon.New(cfg, store, logger, manager, intake)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = SocketPath(cfg)
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("soundrelay daemon shutting down")
	d.Stop()
	return nil
}

func buildBot(cfg *config.Config) (*telegram.Client, error) {
	var opts []telegram.Option
	if base := strings.TrimSpace(cfg.Telegram.APIBaseURL); base != "" {
		opts = append(opts, telegram.WithBaseURL(base))
	}
	return telegram.New(cfg.Telegram.Token, cfg.Telegram.UploadTimeout, opts...)
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, bot *telegram.Client, notifier notifications.Service) {
	if mgr == nil || cfg == nil {
		return
	}

	mgr.ConfigureStages(workflow.StageSet{
		Extractor:  relay.NewExtractor(cfg, store, logger),
		Downloader: relay.NewDownloader(cfg, store, logger),
		Tagger:     relay.NewTagger(cfg, store, logger),
		Deliverer:  relay.NewDelivererWithDependencies(cfg, store, logger, bot, notifier),
	})
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		if status.Available {
			logger.Info("dependency available",
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
			)
			continue
		}
		if status.Optional {
			logger.Warn("optional dependency missing",
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail),
			)
			continue
		}
		logger.Error("required dependency missing",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
