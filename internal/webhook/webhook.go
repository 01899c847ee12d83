// Package webhook notifies an external endpoint when a batch reaches a
// terminal state. Payloads are signed with HMAC-SHA256 so receivers can
// verify the sender.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/config"
	"github.com/vidsqueeze/vidsqueeze/internal/metrics"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// Event names sent in the payload and the X-Webhook-Event header.
const (
	EventBatchFinished  = "batch.finished"
	EventBatchCancelled = "batch.cancelled"
)

// Payload is the JSON body of every notification.
type Payload struct {
	Event     string               `json:"event"`
	Timestamp time.Time            `json:"timestamp"`
	BatchID   string               `json:"batch_id"`
	Summary   *models.BatchSummary `json:"summary,omitempty"`
	Results   []models.JobResult   `json:"results"`
}

// Notifier delivers signed notifications with bounded retries.
type Notifier struct {
	client      *http.Client
	url         string
	secret      string
	maxAttempts int
	backoff     []time.Duration
	log         zerolog.Logger
}

// NewNotifier creates a notifier from configuration.
func NewNotifier(cfg config.WebhookConfig, log zerolog.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Notifier{
		client:      &http.Client{Timeout: timeout},
		url:         cfg.URL,
		secret:      cfg.Secret,
		maxAttempts: maxAttempts,
		backoff:     []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
		log:         log,
	}
}

// NotifyBatchFinished reports a completed batch.
func (n *Notifier) NotifyBatchFinished(ctx context.Context, batchID string, summary models.BatchSummary, results []models.JobResult) error {
	return n.notify(ctx, Payload{
		Event:     EventBatchFinished,
		Timestamp: time.Now().UTC(),
		BatchID:   batchID,
		Summary:   &summary,
		Results:   results,
	})
}

// NotifyBatchCancelled reports a cancelled batch.
func (n *Notifier) NotifyBatchCancelled(ctx context.Context, batchID string, results []models.JobResult) error {
	return n.notify(ctx, Payload{
		Event:     EventBatchCancelled,
		Timestamp: time.Now().UTC(),
		BatchID:   batchID,
		Results:   results,
	})
}

func (n *Notifier) notify(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	deliveryID := uuid.New().String()

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := n.backoff[min(attempt-2, len(n.backoff)-1)]
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = n.deliver(ctx, payload.Event, deliveryID, body)
		if lastErr == nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
			return nil
		}

		n.log.Warn().
			Err(lastErr).
			Str("delivery_id", deliveryID).
			Int("attempt", attempt).
			Msg("webhook delivery failed")
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *Notifier) deliver(ctx context.Context, event, deliveryID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VidSqueeze-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", deliveryID)

	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Signature(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// Signature computes the HMAC-SHA256 signature header value for a payload.
func Signature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
