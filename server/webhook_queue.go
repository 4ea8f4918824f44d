package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/server/otel"
	zap "go.uber.org/zap"
)

// WebhookRetryPolicy controls the exponential backoff schedule:
// delay = min(dMax, d0 * m^attempt), up to maxAttempts.
type WebhookRetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultWebhookRetryPolicy returns the documented default backoff schedule.
func DefaultWebhookRetryPolicy() WebhookRetryPolicy {
	return WebhookRetryPolicy{
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  5,
	}
}

// delayFor computes min(dMax, d0*m^attempt).
func (p WebhookRetryPolicy) delayFor(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// delivery is one queued webhook attempt.
type delivery struct {
	config  a2a.PushNotificationConfig
	payload a2a.WebhookPayload
	attempt int
}

// WebhookQueue is a bounded FIFO plus single worker: a shared HTTP client
// with configurable timeout, auth injection applied immediately before
// sending, and exponential backoff on failure.
type WebhookQueue struct {
	queue     chan delivery
	client    *http.Client
	policy    WebhookRetryPolicy
	logger    *zap.Logger
	telemetry otel.OpenTelemetry
	closed    chan struct{}
	closeCh   chan struct{}
}

// WithTelemetry attaches an OpenTelemetry recorder; delivery-outcome
// metrics are no-ops until this is called.
func (q *WebhookQueue) WithTelemetry(t otel.OpenTelemetry) *WebhookQueue {
	q.telemetry = t
	return q
}

// NewWebhookQueue starts a worker goroutine draining a bounded queue of
// the given capacity (default 1000).
func NewWebhookQueue(capacity int, timeout time.Duration, policy WebhookRetryPolicy, logger *zap.Logger) *WebhookQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	q := &WebhookQueue{
		queue:   make(chan delivery, capacity),
		client:  &http.Client{Timeout: timeout},
		policy:  policy,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue schedules a first-attempt delivery. It fails only if the queue
// has been closed or the bounded buffer is full.
func (q *WebhookQueue) Enqueue(config a2a.PushNotificationConfig, payload a2a.WebhookPayload) error {
	select {
	case <-q.closeCh:
		return fmt.Errorf("webhook queue is closed")
	default:
	}

	select {
	case q.queue <- delivery{config: config, payload: payload, attempt: 0}:
		return nil
	default:
		return fmt.Errorf("webhook queue is full")
	}
}

func (q *WebhookQueue) run() {
	for {
		select {
		case d := <-q.queue:
			q.attemptDeliver(d)
		case <-q.closeCh:
			return
		}
	}
}

func (q *WebhookQueue) attemptDeliver(d delivery) {
	err := q.send(d)
	if err == nil {
		if q.telemetry != nil {
			q.telemetry.RecordWebhookDelivery(context.Background(), true, d.attempt+1)
		}
		if q.logger != nil {
			q.logger.Debug("webhook delivered", zap.String("url", d.config.URL), zap.Int("attempt", d.attempt+1))
		}
		return
	}

	if q.telemetry != nil {
		q.telemetry.RecordWebhookDelivery(context.Background(), false, d.attempt+1)
	}

	if q.logger != nil {
		q.logger.Warn("webhook delivery failed", zap.String("url", d.config.URL),
			zap.Int("attempt", d.attempt+1), zap.Error(err))
	}

	next := d.attempt + 1
	if next >= q.policy.MaxAttempts {
		if q.logger != nil {
			q.logger.Error("webhook delivery dropped after max attempts",
				zap.String("url", d.config.URL), zap.Int("attempts", next))
		}
		return
	}

	delay := q.policy.delayFor(d.attempt)
	d.attempt = next
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			select {
			case q.queue <- d:
			case <-q.closeCh:
			}
		case <-q.closeCh:
		}
	}()
}

func (q *WebhookQueue) send(d delivery) error {
	body, err := json.Marshal(d.payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, d.config.Auth)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// applyAuth injects the configured auth header(s) immediately before
// sending.
func applyAuth(req *http.Request, auth *a2a.PushAuth) {
	if auth == nil {
		return
	}
	if auth.Bearer != nil {
		req.Header.Set("Authorization", "Bearer "+auth.Bearer.Token)
	}
	if auth.CustomHeaders != nil {
		for k, v := range auth.CustomHeaders.Headers {
			req.Header.Set(k, v)
		}
	}
}

// Close stops the worker. Queued deliveries are abandoned.
func (q *WebhookQueue) Close() {
	select {
	case <-q.closeCh:
	default:
		close(q.closeCh)
	}
}
