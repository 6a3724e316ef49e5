package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"soundrelay/internal/config"
	"soundrelay/internal/notifications"
	"soundrelay/internal/queue"
	"soundrelay/internal/relay"
	"soundrelay/internal/stage"
)

// StageSet bundles the concrete relay handlers the manager orchestrates.
type StageSet struct {
	Extractor  stage.Handler
	Downloader stage.Handler
	Tagger     stage.Handler
	Deliverer  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using the configured stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service
	messenger    relay.Messenger

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	statusOrder  []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a workflow manager with default collaborators. The
// messenger is used for failure replies to the requesting chat and may be
// nil.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, messenger relay.Messenger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, messenger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, messenger relay.Messenger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		messenger:    messenger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
	}
}

// ConfigureStages wires the pipeline in processing order.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stages = []pipelineStage{
		{
			name:             "extract",
			handler:          set.Extractor,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
		},
		{
			name:             "download",
			handler:          set.Downloader,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusDownloading,
			doneStatus:       queue.StatusDownloaded,
		},
		{
			name:             "tag",
			handler:          set.Tagger,
			startStatus:      queue.StatusDownloaded,
			processingStatus: queue.StatusTagging,
			doneStatus:       queue.StatusTagged,
		},
		{
			name:             "deliver",
			handler:          set.Deliverer,
			startStatus:      queue.StatusTagged,
			processingStatus: queue.StatusDelivering,
			doneStatus:       queue.StatusCompleted,
		},
	}

	m.stageByStart = make(map[queue.Status]pipelineStage, len(m.stages))
	m.statusOrder = make([]queue.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.statusOrder = append(m.statusOrder, stg.startStatus)
	}
}
