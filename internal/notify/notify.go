// Package notify delivers best-effort operator notifications. Senders are
// fire-and-forget from the caller's point of view: a failed delivery is an
// operational log line, never a customer-visible error.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Notification is one message for the shop owner.
type Notification struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Notifier sends a notification to the shop owner.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Webhook posts notifications as JSON to a configured URL with a bounded
// timeout.
type Webhook struct {
	url    string
	client *http.Client
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook creates a Webhook sender. timeout bounds each delivery attempt.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify posts the notification. Any non-2xx response is an error.
func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post notification")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Log writes notifications to the request logger. It is the sink used when no
// webhook URL is configured, keeping the workflow's notify step observable in
// development.
type Log struct{}

var _ Notifier = Log{}

// Notify logs the notification at info level.
func (Log) Notify(ctx context.Context, n Notification) error {
	zctx.From(ctx).Info("owner notification",
		zap.String("title", n.Title),
		zap.String("content", n.Content),
	)
	return nil
}
