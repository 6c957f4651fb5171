package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Webhook posts payloads to Discord webhook URLs. Delivery is single-shot:
// no retries, no queuing. A rejected request has its structured error body
// logged before the error is returned to the caller.
type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = logger }
}

// NewWebhook creates a sender with a sane default timeout.
func NewWebhook(opts ...WebhookOption) *Webhook {
	w := &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Send delivers one payload. The returned error is informational; callers
// dispatching fire-and-forget may count it and move on.
func (w *Webhook) Send(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	// Discord sends a JSON error body explaining the rejection; surface it.
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if trimmed := strings.TrimSpace(string(errBody)); trimmed != "" {
		w.logger.Error("webhook rejected", "status", resp.StatusCode, "body", trimmed)
	}
	return errors.Errorf("webhook status %s", resp.Status)
}
