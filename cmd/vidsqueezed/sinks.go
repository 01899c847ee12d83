package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/history"
	"github.com/vidsqueeze/vidsqueeze/internal/metrics"
	"github.com/vidsqueeze/vidsqueeze/internal/queue"
	"github.com/vidsqueeze/vidsqueeze/internal/storage"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/internal/webhook"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// historySink writes terminal batch records to PostgreSQL.
type historySink struct {
	repo *history.Repository
	log  zerolog.Logger

	mu      sync.Mutex
	started map[string]time.Time
}

func newHistorySink(repo *history.Repository, log zerolog.Logger) *historySink {
	return &historySink{
		repo:    repo,
		log:     log,
		started: make(map[string]time.Time),
	}
}

func (s *historySink) Name() string { return "history" }

func (s *historySink) Consume(ctx context.Context, ev transcoder.Event) {
	switch ev.Type {
	case transcoder.EventFileStarted:
		s.mu.Lock()
		if _, ok := s.started[ev.BatchID]; !ok {
			s.started[ev.BatchID] = ev.At
		}
		s.mu.Unlock()

	case transcoder.EventBatchFinished, transcoder.EventBatchCancelled:
		s.mu.Lock()
		startedAt, ok := s.started[ev.BatchID]
		delete(s.started, ev.BatchID)
		s.mu.Unlock()
		if !ok {
			startedAt = ev.At
		}

		summary := models.Summarize(ev.Results)
		if ev.Summary != nil {
			summary = *ev.Summary
		}

		rec := history.BatchRecord{
			ID:              ev.BatchID,
			StartedAt:       startedAt,
			FinishedAt:      ev.At,
			Cancelled:       ev.Type == transcoder.EventBatchCancelled,
			Succeeded:       summary.Succeeded,
			Total:           summary.Total,
			OriginalBytes:   summary.OriginalBytes,
			CompressedBytes: summary.CompressedBytes,
			ReductionPct:    summary.ReductionPct,
		}

		if err := s.repo.SaveBatch(ctx, rec, ev.Results); err != nil {
			s.log.Error().Err(err).Str("batch_id", ev.BatchID).Msg("failed to save batch history")
			metrics.HistoryWritesTotal.WithLabelValues("error").Inc()
			return
		}
		metrics.HistoryWritesTotal.WithLabelValues("ok").Inc()
	}
}

// archiveSink uploads each successful output to object storage.
type archiveSink struct {
	archive *storage.Archive
	log     zerolog.Logger
}

func newArchiveSink(archive *storage.Archive, log zerolog.Logger) *archiveSink {
	return &archiveSink{archive: archive, log: log}
}

func (s *archiveSink) Name() string { return "archive" }

func (s *archiveSink) Consume(ctx context.Context, ev transcoder.Event) {
	if ev.Type != transcoder.EventFileFinished || ev.Result == nil || !ev.Result.Success {
		return
	}

	object, err := s.archive.Store(ctx, ev.BatchID, ev.Result.OutputPath)
	if err != nil {
		s.log.Error().Err(err).Str("output", ev.Result.OutputPath).Msg("failed to archive output")
		metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
		return
	}

	s.log.Info().Str("object", object).Msg("output archived")
	metrics.ArchiveUploadsTotal.WithLabelValues("ok").Inc()
}

// queueSink publishes lifecycle events to RabbitMQ.
type queueSink struct {
	pub *queue.Publisher
	log zerolog.Logger
}

func newQueueSink(pub *queue.Publisher, log zerolog.Logger) *queueSink {
	return &queueSink{pub: pub, log: log}
}

func (s *queueSink) Name() string { return "queue" }

func (s *queueSink) Consume(ctx context.Context, ev transcoder.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", string(ev.Type)).Msg("failed to publish event")
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
}

// webhookSink notifies the configured endpoint about terminal batch states.
type webhookSink struct {
	notifier *webhook.Notifier
	log      zerolog.Logger
}

func newWebhookSink(notifier *webhook.Notifier, log zerolog.Logger) *webhookSink {
	return &webhookSink{notifier: notifier, log: log}
}

func (s *webhookSink) Name() string { return "webhook" }

func (s *webhookSink) Consume(ctx context.Context, ev transcoder.Event) {
	var err error
	switch ev.Type {
	case transcoder.EventBatchFinished:
		summary := models.Summarize(ev.Results)
		if ev.Summary != nil {
			summary = *ev.Summary
		}
		err = s.notifier.NotifyBatchFinished(ctx, ev.BatchID, summary, ev.Results)
	case transcoder.EventBatchCancelled:
		err = s.notifier.NotifyBatchCancelled(ctx, ev.BatchID, ev.Results)
	default:
		return
	}

	if err != nil {
		s.log.Error().Err(err).Str("batch_id", ev.BatchID).Msg("webhook notification failed")
	}
}

// metricsSink keeps the Prometheus batch and file metrics current.
type metricsSink struct {
	mu      sync.Mutex
	codec   string
	mode    string
	started map[int]time.Time
}

func newMetricsSink() *metricsSink {
	return &metricsSink{started: make(map[int]time.Time)}
}

func (s *metricsSink) Name() string { return "metrics" }

// SetBatch records the labels of the batch that is about to run.
func (s *metricsSink) SetBatch(settings models.CompressionSettings) {
	s.mu.Lock()
	s.codec = string(settings.Codec)
	s.mode = string(settings.Mode)
	s.started = make(map[int]time.Time)
	s.mu.Unlock()
}

func (s *metricsSink) Consume(ctx context.Context, ev transcoder.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case transcoder.EventFileStarted:
		s.started[ev.Index] = ev.At

	case transcoder.EventFileError:
		metrics.RecordError("job", ev.ErrorKind)

	case transcoder.EventFileFinished:
		if ev.Result == nil {
			return
		}
		var duration float64
		if startedAt, ok := s.started[ev.Index]; ok {
			duration = ev.At.Sub(startedAt).Seconds()
			delete(s.started, ev.Index)
		}
		metrics.RecordFileProcessed(fileStatus(*ev.Result), s.codec, s.mode, duration)
		if ev.Result.Success {
			metrics.RecordBytesSaved(s.mode, ev.Result.OriginalBytes, ev.Result.CompressedBytes)
		}

	case transcoder.EventBatchFinished:
		metrics.RecordBatchEnded("finished")

	case transcoder.EventBatchCancelled:
		metrics.RecordBatchEnded("cancelled")
	}
}

func fileStatus(res models.JobResult) string {
	switch {
	case res.Success:
		return "completed"
	case res.Error == "cancelled":
		return "cancelled"
	default:
		return "failed"
	}
}
