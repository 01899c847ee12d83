package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidsqueeze_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Batch Metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_batches_total",
			Help: "Total number of batches by terminal status",
		},
		[]string{"status"},
	)

	BatchActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidsqueeze_batch_active",
			Help: "Whether a batch is currently running",
		},
	)

	BatchSizeFiles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidsqueeze_batch_size_files",
			Help:    "Number of files per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// File Metrics
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_files_processed_total",
			Help: "Total number of files processed by terminal status",
		},
		[]string{"status"},
	)

	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidsqueeze_encode_duration_seconds",
			Help:    "Wall-clock encode duration per file in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"codec", "mode"},
	)

	BytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidsqueeze_bytes_saved_total",
			Help: "Total bytes removed across successful encodes",
		},
	)

	SizeReduction = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidsqueeze_size_reduction_percent",
			Help:    "Per-file size reduction percentage",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"mode"},
	)

	// Probe Metrics
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidsqueeze_probe_duration_seconds",
			Help:    "Metadata probe duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Sink Metrics
	ArchiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_archive_uploads_total",
			Help: "Total number of archive uploads",
		},
		[]string{"status"},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_webhook_deliveries_total",
			Help: "Total number of webhook deliveries",
		},
		[]string{"status"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_events_published_total",
			Help: "Total number of events published to the message queue",
		},
		[]string{"status"},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_history_writes_total",
			Help: "Total number of batch history writes",
		},
		[]string{"status"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsqueeze_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordBatchStarted marks a batch as active
func RecordBatchStarted(files int) {
	BatchActive.Set(1)
	BatchSizeFiles.Observe(float64(files))
}

// RecordBatchEnded records the terminal status of a batch
func RecordBatchEnded(status string) {
	BatchActive.Set(0)
	BatchesTotal.WithLabelValues(status).Inc()
}

// RecordFileProcessed records a file reaching a terminal state
func RecordFileProcessed(status, codec, mode string, duration float64) {
	FilesProcessedTotal.WithLabelValues(status).Inc()
	EncodeDuration.WithLabelValues(codec, mode).Observe(duration)
}

// RecordBytesSaved records the size delta of a successful encode
func RecordBytesSaved(mode string, originalBytes, compressedBytes int64) {
	if saved := originalBytes - compressedBytes; saved > 0 {
		BytesSavedTotal.Add(float64(saved))
	}
	if originalBytes > 0 {
		pct := (1 - float64(compressedBytes)/float64(originalBytes)) * 100
		if pct < 0 {
			pct = 0
		}
		SizeReduction.WithLabelValues(mode).Observe(pct)
	}
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
