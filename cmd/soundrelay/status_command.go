package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundrelay/internal/config"
	"soundrelay/internal/deps"
	"soundrelay/internal/ipc"
	"soundrelay/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp := collectStatus(cmd.Context(), ctx.socketPath(), cfg)

			if ctx.jsonMode() {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range systemLines(cfg, statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(cfg, colorize) {
				fmt.Fprintln(stdout, line)
			}

			if len(statusResp.StageHealth) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Stage Health", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, health := range statusResp.StageHealth {
					kind := statusOK
					detail := health.Detail
					if !health.Ready {
						kind = statusError
						if detail == "" {
							detail = "not ready"
						}
					} else if detail == "" {
						detail = "Ready"
					}
					fmt.Fprintln(stdout, renderStatusLine(formatStatusLabel(health.Name), kind, detail, colorize))
				}
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(statusResp.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			return nil
		},
	}
}

// collectStatus returns daemon status over IPC when available, falling back
// to direct queue inspection when the daemon is down.
func collectStatus(ctx context.Context, socketPath string, cfg *config.Config) *ipc.StatusResponse {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			return resp
		}
	}

	resp := &ipc.StatusResponse{}
	if cfg == nil {
		return resp
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := queue.Open(cfg)
	if err != nil {
		return resp
	}
	defer store.Close()

	stats, statsErr := store.Stats(queryCtx)
	if statsErr == nil {
		resp.QueueStats = stats
	}
	resp.QueueDBPath = store.Path()
	return resp
}

func systemLines(cfg *config.Config, status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 4)
	if status.Running {
		lines = append(lines, renderStatusLine("Soundrelay", statusOK, "Running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Soundrelay", statusWarn, "Not running (run `soundrelay daemon start`)", colorize))
	}

	if cfg != nil {
		if strings.TrimSpace(cfg.Telegram.WebhookURL) != "" {
			lines = append(lines, renderStatusLine("Telegram Intake", statusOK, "Webhook", colorize))
		} else {
			lines = append(lines, renderStatusLine("Telegram Intake", statusOK, "Long polling", colorize))
		}

		if strings.TrimSpace(cfg.Paths.APIBind) != "" {
			lines = append(lines, renderStatusLine("Status API", statusOK, cfg.Paths.APIBind, colorize))
		} else {
			lines = append(lines, renderStatusLine("Status API", statusInfo, "Disabled", colorize))
		}

		if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
			lines = append(lines, renderStatusLine("Notifications", statusOK, "Configured", colorize))
		} else {
			lines = append(lines, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
		}
	}

	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last Error", statusError, status.LastError, colorize))
	}
	return lines
}

func dependencyLines(cfg *config.Config, colorize bool) []string {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	lines := make([]string, 0, len(statuses))
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
