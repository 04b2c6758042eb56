// Package chat delivers messages to the external chat service through its bot
// API or an incoming webhook, and verifies signed requests coming back from it.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
)

// Webhook posts identify themselves with this name and icon.
const (
	WebhookUsername  = "Taskflow Bot"
	WebhookIconEmoji = ":clipboard:"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 10

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client implements Sender. It prefers the bot API when a token is set and
// falls back to the webhook when the bot attempt fails.
type Client struct {
	cfg        config.ChatConfig
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Sender = (*Client)(nil)

// NewClient creates a chat client from cfg. Every request is bounded by
// cfg.Timeout.
func NewClient(cfg config.ChatConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("chat timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.BotToken != "" && cfg.APIBaseURL == "" {
		return nil, errors.New("chat API base URL is required when a bot token is set")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "chat_client")),
	}, nil
}

// Configured reports whether any delivery mode is available.
func (c *Client) Configured() bool {
	return c.cfg.ChatDeliveryEnabled()
}

// Send delivers msg, defaulting the channel when empty.
func (c *Client) Send(ctx context.Context, msg Message) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if msg.Channel == "" {
		msg.Channel = c.cfg.DefaultChannel
	}

	if c.cfg.BotToken == "" && c.cfg.WebhookURL == "" {
		return ErrNotConfigured
	}

	if c.cfg.BotToken != "" {
		err := c.sendBot(ctx, msg)
		if err == nil {
			log.Debug("chat message sent", slog.String("mode", ModeBot), slog.String("channel", msg.Channel))
			return nil
		}
		if c.cfg.WebhookURL == "" {
			return err
		}
		log.Warn("bot delivery failed, falling back to webhook",
			slog.String("channel", msg.Channel),
			slog.String("error", redact.Error(err)))
	}

	if err := c.sendWebhook(ctx, msg); err != nil {
		return err
	}
	log.Debug("chat message sent", slog.String("mode", ModeWebhook), slog.String("channel", msg.Channel))
	return nil
}

type botResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) sendBot(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return &DeliveryError{Mode: ModeBot, Err: fmt.Errorf("encode message: %w", err)}
	}

	endpoint := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/chat.postMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Mode: ModeBot, Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Mode: ModeBot, Transient: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{
			Mode:       ModeBot,
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
		}
	}

	var parsed botResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &DeliveryError{Mode: ModeBot, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !parsed.OK {
		return &DeliveryError{
			Mode:       ModeBot,
			StatusCode: resp.StatusCode,
			APIError:   parsed.Error,
			Transient:  transientAPIErrors[parsed.Error],
		}
	}
	return nil
}

type webhookPayload struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

func (c *Client) sendWebhook(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		Channel:   msg.Channel,
		Text:      msg.Text,
		Username:  WebhookUsername,
		IconEmoji: WebhookIconEmoji,
	})
	if err != nil {
		return &DeliveryError{Mode: ModeWebhook, Err: fmt.Errorf("encode message: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Mode: ModeWebhook, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Mode: ModeWebhook, Transient: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{
			Mode:       ModeWebhook,
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
		}
	}
	return nil
}
