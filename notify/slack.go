package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SlackConfig configures webhook delivery.
type SlackConfig struct {
	WebhookURL string

	// Timeout bounds a single POST. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after the first failed POST.
	// Default: 3, waiting 1s, 2s, 4s between attempts.
	MaxRetries int

	// BaseBackoff is the first retry wait, doubled each attempt. Default: 1s.
	BaseBackoff time.Duration

	Logger *slog.Logger
}

func (c *SlackConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Slack delivers payloads to a Slack incoming-webhook URL.
type Slack struct {
	cfg    SlackConfig
	client *http.Client
}

// NewSlack creates a Slack notifier.
func NewSlack(cfg SlackConfig) *Slack {
	cfg.defaults()
	return &Slack{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Send renders the payload and POSTs it to the webhook, retrying transient
// failures with exponential backoff. With dryRun the rendered message is
// logged and nothing is delivered.
func (s *Slack) Send(ctx context.Context, p *Payload, dryRun bool) error {
	msg := BuildMessage(p)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	if dryRun {
		s.cfg.Logger.Info("notify: dry run, skipping delivery",
			"text", msg.Text,
			"blocks", len(msg.Blocks),
			"bytes", len(body))
		return nil
	}
	if s.cfg.WebhookURL == "" {
		return fmt.Errorf("notify: no webhook url configured")
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		err := s.post(ctx, body)
		if err == nil {
			s.cfg.Logger.Info("notify: delivered", "blocks", len(msg.Blocks))
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}

		if attempt < s.cfg.MaxRetries {
			wait := s.cfg.BaseBackoff * (1 << uint(attempt))
			s.cfg.Logger.Warn("notify: delivery failed, retrying",
				"attempt", attempt+1,
				"max_retries", s.cfg.MaxRetries,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("notify: delivery failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *Slack) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}
