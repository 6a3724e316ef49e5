package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"soundrelay/internal/logging"
	"soundrelay/internal/queue"
	"soundrelay/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.log()).With(logging.String("component", "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	job.Status = queue.StatusFailed
	job.ErrorMessage = message
	job.ProgressMsg = "Failed"

	logger.Error("stage failed",
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	// A retried job re-runs from pending, so partial downloads are useless.
	if workDir := strings.TrimSpace(job.WorkDir); workDir != "" {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("work dir cleanup failed", logging.String("work_dir", workDir), logging.Error(err))
		}
	}

	m.setLastJob(job)
	m.replyFailure(ctx, logger, job, message)
	if m.notifier != nil {
		if err := m.notifier.NotifyRelayFailed(ctx, job.DisplayTitle(), stageErr); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) replyFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) {
	if m.messenger == nil || job.ChatID == 0 {
		return
	}
	text := fmt.Sprintf("Error: %s. Please try again.", message)
	if _, err := m.messenger.SendMessage(ctx, job.ChatID, text); err != nil {
		logger.Warn("failure reply not delivered", logging.Error(err))
	}
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return stageName + " failed without error detail"
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(services.UserMessage(stageErr))
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	return message
}
