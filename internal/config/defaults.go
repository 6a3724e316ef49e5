package config

const (
	defaultDownloadDir        = "~/.local/share/soundrelay/downloads"
	defaultLogDir             = "~/.local/share/soundrelay/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultTelegramBaseURL    = "https://api.telegram.org"
	defaultWebhookBind        = "0.0.0.0:5000"
	defaultPollTimeout        = 30
	defaultUploadTimeout      = 300
	defaultProbeTimeout       = 60
	defaultDownloadTimeout    = 600
	defaultPlaylistLimit      = 50
	defaultTagTimeout         = 120
	defaultDeliveryAttempts   = 3
	defaultBackoffMinSeconds  = 4
	defaultBackoffMaxSeconds  = 10
	defaultNotifyTimeout      = 10
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Telegram: Telegram{
			APIBaseURL:    defaultTelegramBaseURL,
			WebhookBind:   defaultWebhookBind,
			PollTimeout:   defaultPollTimeout,
			UploadTimeout: defaultUploadTimeout,
		},
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Extractor: Extractor{
			Binary:          "yt-dlp",
			ProbeTimeout:    defaultProbeTimeout,
			DownloadTimeout: defaultDownloadTimeout,
			PlaylistLimit:   defaultPlaylistLimit,
		},
		Media: Media{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			TagTimeout:    defaultTagTimeout,
		},
		Delivery: Delivery{
			Attempts:       defaultDeliveryAttempts,
			BackoffMinSecs: defaultBackoffMinSeconds,
			BackoffMaxSecs: defaultBackoffMaxSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Relay:          true,
			Errors:         true,
			Lifecycle:      true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
