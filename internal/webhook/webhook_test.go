package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidsqueeze/vidsqueeze/internal/config"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

func newTestNotifier(url, secret string, maxAttempts int) *Notifier {
	n := NewNotifier(config.WebhookConfig{
		URL:         url,
		Secret:      secret,
		MaxAttempts: maxAttempts,
	}, zerolog.Nop())
	n.backoff = []time.Duration{0}
	return n
}

func TestNotifyBatchFinished(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL, "supersecret", 3)

	summary := models.BatchSummary{Succeeded: 2, Total: 3, OriginalBytes: 2000, CompressedBytes: 800, ReductionPct: 60}
	results := []models.JobResult{
		{Success: true, InputPath: "/in/a.mp4"},
		{Success: false, InputPath: "/in/b.mp4", Error: "encoder exited with code 1"},
		{Success: true, InputPath: "/in/c.mp4"},
	}

	err := n.NotifyBatchFinished(context.Background(), "batch-1", summary, results)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, EventBatchFinished, gotHeaders.Get("X-Webhook-Event"))
	assert.NotEmpty(t, gotHeaders.Get("X-Webhook-Delivery"))
	assert.Equal(t, Signature(gotBody, "supersecret"), gotHeaders.Get("X-Webhook-Signature"))

	var payload Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, EventBatchFinished, payload.Event)
	assert.Equal(t, "batch-1", payload.BatchID)
	require.NotNil(t, payload.Summary)
	assert.Equal(t, 2, payload.Summary.Succeeded)
	assert.Len(t, payload.Results, 3)
}

func TestNotifyRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL, "", 5)

	err := n.NotifyBatchCancelled(context.Background(), "batch-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestNotifyGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL, "", 2)

	err := n.NotifyBatchFinished(context.Background(), "batch-1", models.BatchSummary{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNotifyWithoutSecretOmitsSignature(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL, "", 1)

	require.NoError(t, n.NotifyBatchFinished(context.Background(), "batch-1", models.BatchSummary{}, nil))
	assert.Empty(t, gotHeaders.Get("X-Webhook-Signature"))
}

func TestSignature(t *testing.T) {
	got := Signature([]byte(`{"event":"batch.finished"}`), "supersecret")
	assert.Equal(t, "sha256=c3823d830c9cc2432ee643e1ddbf003310b7db8254aadaf1e8775c29dab8ffd1", got)
}
