// Package notify delivers fire-and-forget pipeline notifications to a
// webhook. Failures are logged and never retried; nothing in the
// pipeline depends on delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier sends a human-readable message somewhere.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// WebhookNotifier posts Slack-compatible JSON payloads.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a notifier for url. An empty url yields a
// notifier that only logs.
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify posts the message. Errors are swallowed after logging.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) {
	if n.url == "" {
		n.logger.Debug("notification (no webhook configured)", zap.String("message", message))
		return
	}

	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		n.logger.Warn("failed to encode notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("failed to deliver notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("url", n.url),
		)
		return
	}
	n.logger.Debug("notification delivered", zap.String("message", message))
}

// Summary formats a cycle summary message.
func Summary(cycle int, dispatched, succeeded, transient, permanent, skipped int) string {
	return fmt.Sprintf(
		"cycle %d: dispatched=%d succeeded=%d transient-failed=%d permanent-failed=%d skipped=%d",
		cycle, dispatched, succeeded, transient, permanent, skipped,
	)
}
