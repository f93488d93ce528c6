// Package alert delivers operational alerts to webhook destinations.
//
// Each alert is POSTed as a JSON object {"event": ..., "payload": ...} to
// every configured webhook. Delivery is best-effort: it is never retried,
// failures are logged, and a Notifier with no destinations logs and
// returns false.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Sender accepts alerts. *Notifier satisfies it; the runner and the trail
// depend on this interface only.
type Sender interface {
	Send(ctx context.Context, event string, payload map[string]any) bool
}

// SenderFunc is an adapter to use a plain function as a Sender.
type SenderFunc func(ctx context.Context, event string, payload map[string]any) bool

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, event string, payload map[string]any) bool {
	return f(ctx, event, payload)
}

// Skip reasons logged with alert_skipped.
const (
	ReasonNoWebhook      = "no_webhook"
	ReasonDeliveryFailed = "delivery_failed"
	ReasonRateLimited    = "rate_limited"
)

// DefaultTimeout bounds a single webhook delivery.
const DefaultTimeout = 5 * time.Second

var _ Sender = (*Notifier)(nil)

// Notifier posts alerts to a fixed list of webhooks.
type Notifier struct {
	webhooks []string
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	exempt   map[string]struct{}
	logger   *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the notifier logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithHTTPClient replaces the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithTimeout bounds each delivery. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithRateLimit caps alerts per second across all destinations. Zero or
// negative disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(n *Notifier) {
		if perSec <= 0 {
			n.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRateLimitExempt lets the named alerts bypass the rate limit. They
// are always attempted and do not consume tokens.
func WithRateLimitExempt(events ...string) Option {
	return func(n *Notifier) {
		if n.exempt == nil {
			n.exempt = make(map[string]struct{}, len(events))
		}
		for _, e := range events {
			n.exempt[e] = struct{}{}
		}
	}
}

// New returns a Notifier that delivers to webhooks in order.
func New(webhooks []string, opts ...Option) *Notifier {
	n := &Notifier{
		webhooks: append([]string(nil), webhooks...),
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Webhooks returns the configured destinations.
func (n *Notifier) Webhooks() []string {
	return append([]string(nil), n.webhooks...)
}

type message struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Send posts the alert to every webhook and reports whether at least one
// delivery succeeded.
func (n *Notifier) Send(ctx context.Context, event string, payload map[string]any) bool {
	if len(n.webhooks) == 0 {
		n.skipped(event, ReasonNoWebhook, "")
		return false
	}
	if _, exempt := n.exempt[event]; !exempt && n.limiter != nil && !n.limiter.Allow() {
		n.skipped(event, ReasonRateLimited, "")
		return false
	}
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(message{Event: event, Payload: payload})
	if err != nil {
		n.skipped(event, ReasonDeliveryFailed, err.Error())
		return false
	}

	delivered := false
	for _, url := range n.webhooks {
		if err := n.post(ctx, url, body); err != nil {
			n.logger.Warn("alert delivery failed",
				slog.String("event", "alert_skipped"),
				slog.String("alert", event),
				slog.String("reason", ReasonDeliveryFailed),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered = true
	}

	if delivered {
		n.logger.Info("alert sent",
			slog.String("event", "alert_sent"),
			slog.String("alert", event),
		)
	}
	return delivered
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sodmaster/alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sodmaster/alert: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sodmaster/alert: webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) skipped(event, reason, detail string) {
	attrs := []any{
		slog.String("event", "alert_skipped"),
		slog.String("alert", event),
		slog.String("reason", reason),
	}
	if detail != "" {
		attrs = append(attrs, slog.String("error", detail))
	}
	n.logger.Warn("alert skipped", attrs...)
}
