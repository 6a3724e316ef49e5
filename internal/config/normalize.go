package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeExtractor()
	c.normalizeMedia()
	c.normalizeDelivery()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	if c.Telegram.Token == "" {
		if value, ok := os.LookupEnv("SOUNDRELAY_TELEGRAM_TOKEN"); ok {
			c.Telegram.Token = value
		}
	}
	if c.Telegram.Token == "" {
		if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.Token = value
		}
	}
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIBaseURL), "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = defaultTelegramBaseURL
	}
	c.Telegram.WebhookURL = strings.TrimRight(strings.TrimSpace(c.Telegram.WebhookURL), "/")
	c.Telegram.WebhookBind = strings.TrimSpace(c.Telegram.WebhookBind)
	if c.Telegram.WebhookBind == "" {
		c.Telegram.WebhookBind = defaultWebhookBind
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
	if c.Telegram.UploadTimeout <= 0 {
		c.Telegram.UploadTimeout = defaultUploadTimeout
	}
}

func (c *Config) normalizeExtractor() {
	c.Extractor.Binary = strings.TrimSpace(c.Extractor.Binary)
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = "yt-dlp"
	}
	if c.Extractor.ProbeTimeout <= 0 {
		c.Extractor.ProbeTimeout = defaultProbeTimeout
	}
	if c.Extractor.DownloadTimeout <= 0 {
		c.Extractor.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Extractor.PlaylistLimit <= 0 {
		c.Extractor.PlaylistLimit = defaultPlaylistLimit
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = "ffmpeg"
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = "ffprobe"
	}
	if c.Media.TagTimeout <= 0 {
		c.Media.TagTimeout = defaultTagTimeout
	}
}

func (c *Config) normalizeDelivery() {
	if c.Delivery.Attempts <= 0 {
		c.Delivery.Attempts = defaultDeliveryAttempts
	}
	if c.Delivery.BackoffMinSecs <= 0 {
		c.Delivery.BackoffMinSecs = defaultBackoffMinSeconds
	}
	if c.Delivery.BackoffMaxSecs <= 0 {
		c.Delivery.BackoffMaxSecs = defaultBackoffMaxSeconds
	}
	if c.Delivery.BackoffMaxSecs < c.Delivery.BackoffMinSecs {
		c.Delivery.BackoffMaxSecs = c.Delivery.BackoffMinSecs
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
