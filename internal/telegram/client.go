package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a Bot API level failure (ok=false in the response envelope).
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Retryable reports whether an error from this client is worth retrying:
// any Bot API error and transport-level timeouts qualify. Transient chat
// or upload trouble often clears within the backoff window, and callers
// that exhaust their attempts fall back to a document send anyway.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at an alternate Bot API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// Client talks to the Telegram Bot API over plain HTTP. The Bot API is a
// small JSON surface; this client covers the handful of methods the relay
// needs rather than pulling in a wrapper library.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New builds a Bot API client for the given token.
func New(token string, uploadTimeoutSeconds int, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram bot token required")
	}
	timeout := time.Duration(uploadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Token returns the bot token. The webhook handler uses it as the secret
// path segment.
func (c *Client) Token() string {
	return c.token
}

// GetMe fetches the bot's own account and doubles as a credentials check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates long-polls for incoming updates. timeoutSeconds is the server
// side hold time; the HTTP request itself is allowed a little extra.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	if timeoutSeconds < 0 {
		timeoutSeconds = 0
	}
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message"},
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds+10)*time.Second)
	defer cancel()

	var updates []Update
	if err := c.call(reqCtx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers url as the update delivery endpoint.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook removes a previously registered webhook so long polling
// can take over.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

// SendMessage posts a plain text reply to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText rewrites the text of a message the bot previously sent.
// Used for in-place progress updates.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// DeleteMessage removes a message the bot sent earlier.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	return c.call(ctx, "deleteMessage", payload, nil)
}

// Audio describes an audio upload.
type Audio struct {
	Path     string
	Title    string
	Artist   string
	Duration int
	ReplyTo  int64
}

// SendAudio uploads a local audio file with performer/title/duration
// attributes so clients render it as a playable track.
func (c *Client) SendAudio(ctx context.Context, chatID int64, audio Audio) (*Message, error) {
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
	}
	if audio.Title != "" {
		fields["title"] = audio.Title
	}
	if audio.Artist != "" {
		fields["performer"] = audio.Artist
	}
	if audio.Duration > 0 {
		fields["duration"] = strconv.Itoa(audio.Duration)
	}
	if audio.ReplyTo > 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(audio.ReplyTo, 10)
	}
	var msg Message
	if err := c.upload(ctx, "sendAudio", "audio", audio.Path, "", fields, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Document describes a generic file upload. FileName overrides the visible
// name shown in the chat; empty means the file's base name.
type Document struct {
	Path     string
	FileName string
	ReplyTo  int64
}

// SendDocument uploads a local file as a generic document. Fallback path
// when sendAudio keeps failing.
func (c *Client) SendDocument(ctx context.Context, chatID int64, doc Document) (*Message, error) {
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
	}
	if doc.ReplyTo > 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(doc.ReplyTo, 10)
	}
	var msg Message
	if err := c.upload(ctx, "sendDocument", "document", doc.Path, doc.FileName, fields, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", method, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeResponse(method, resp, out)
}

func (c *Client) upload(ctx context.Context, method, fileField, path, fileName string, fields map[string]string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	if fileName == "" {
		fileName = filepath.Base(path)
	}

	// Stream the multipart body through a pipe so large files never sit
	// in memory whole.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() {
			pw.CloseWithError(werr)
		}()
		for name, value := range fields {
			if werr = writer.WriteField(name, value); werr != nil {
				return
			}
		}
		part, perr := writer.CreateFormFile(fileField, fileName)
		if perr != nil {
			werr = perr
			return
		}
		if _, werr = io.Copy(part, file); werr != nil {
			return
		}
		werr = writer.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), pr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeResponse(method, resp, out)
}

func decodeResponse(method string, resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
