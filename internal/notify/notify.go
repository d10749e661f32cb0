// Package notify implements the goal notifier port. Delivery goes through the
// messaging transport's callback endpoint; the referral core never talks to
// the chat platform directly.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	id "refhub/pkg/domain"
)

const defaultTimeout = 10 * time.Second

// goalPayload is the body posted to the transport callback.
type goalPayload struct {
	UserID        int64 `json:"user_id"`
	ReferralCount int   `json:"referral_count"`
	Goal          int   `json:"goal"`
}

// Webhook posts goal-reached notifications to the transport layer. A non-2xx
// response or transport error is a delivery failure; the caller leaves the
// goal flag unset so delivery is retried on the next qualifying event.
type Webhook struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// WebhookOption configures a Webhook instance.
type WebhookOption func(*Webhook)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		if client != nil {
			w.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWebhook constructs a webhook notifier targeting url.
func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	w := &Webhook{
		client: &http.Client{Timeout: defaultTimeout},
		url:    url,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func (w *Webhook) Notify(ctx context.Context, userID id.UserID, referralCount, goal int) error {
	body, err := json.Marshal(goalPayload{
		UserID:        userID.Int64(),
		ReferralCount: referralCount,
		Goal:          goal,
	})
	if err != nil {
		return fmt.Errorf("encode goal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build goal notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver goal notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver goal notification: transport returned %d", resp.StatusCode)
	}

	w.logger.InfoContext(ctx, "goal notification delivered",
		"user_id", userID,
		"referral_count", referralCount,
	)
	return nil
}

// Disabled is the notifier used when no webhook is configured. It always
// reports failure so goal_notified stays unset and delivery is retried once a
// transport is wired.
type Disabled struct {
	logger *slog.Logger
}

func NewDisabled(logger *slog.Logger) *Disabled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disabled{logger: logger}
}

func (d *Disabled) Notify(ctx context.Context, userID id.UserID, referralCount, goal int) error {
	d.logger.WarnContext(ctx, "goal reached but no notifier configured",
		"user_id", userID,
		"referral_count", referralCount,
		"goal", goal,
	)
	return fmt.Errorf("notifier not configured")
}
