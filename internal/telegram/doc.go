// Package telegram is a minimal Telegram Bot API client covering the
// methods the relay uses: update intake (long polling or webhook
// registration), text replies, and multipart audio/document uploads.
package telegram
