package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/soundrelay/config.toml"
		}
		return fmt.Errorf("telegram.token is required. Set SOUNDRELAY_TELEGRAM_TOKEN env var or edit %s (create with 'soundrelay config init')", defaultPath)
	}
	if url := c.Telegram.WebhookURL; url != "" {
		if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
			return errors.New("telegram.webhook_url must start with http:// or https://")
		}
	}
	return nil
}

func (c *Config) validateDelivery() error {
	return ensurePositiveMap(map[string]int{
		"delivery.attempts":            c.Delivery.Attempts,
		"delivery.backoff_min_seconds": c.Delivery.BackoffMinSecs,
		"delivery.backoff_max_seconds": c.Delivery.BackoffMaxSecs,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"telegram.poll_timeout":         c.Telegram.PollTimeout,
		"telegram.upload_timeout":       c.Telegram.UploadTimeout,
		"extractor.probe_timeout":       c.Extractor.ProbeTimeout,
		"extractor.download_timeout":    c.Extractor.DownloadTimeout,
		"media.tag_timeout":             c.Media.TagTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero", key)
		}
	}
	return nil
}
