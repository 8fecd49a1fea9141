package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync progress metrics
	SyncRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_rows_total",
			Help: "Total number of rows synced by source, table and phase",
		},
		[]string{"source", "table", "phase"},
	)

	SyncBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surreal_sync_batch_duration_seconds",
			Help:    "Time taken to apply a batch of changes to the sink",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "table"},
	)

	SyncErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_errors_total",
			Help: "Total number of errors encountered by source and stage",
		},
		[]string{"source", "stage"},
	)

	// Checkpoint metrics
	CheckpointEmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_checkpoint_emit_total",
			Help: "Total number of checkpoints persisted by source",
		},
		[]string{"source"},
	)

	CheckpointLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surreal_sync_checkpoint_lag_seconds",
			Help: "Age of the last persisted checkpoint in seconds",
		},
		[]string{"source"},
	)

	// Extractor metrics
	ExtractorLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surreal_sync_extractor_lag_seconds",
			Help: "Time between a change occurring at the source and being read by the extractor",
		},
		[]string{"source"},
	)

	ExtractorQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surreal_sync_extractor_queue_depth",
			Help: "Number of changes buffered in the extractor's output channel",
		},
		[]string{"source"},
	)

	ExtractorReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_extractor_reconnects_total",
			Help: "Total number of times an extractor reconnected to its source",
		},
		[]string{"source"},
	)

	// Sink metrics
	SinkApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surreal_sync_sink_apply_duration_seconds",
			Help:    "Time taken for the sink to apply a batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink_version"},
	)

	SinkRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_sink_retries_total",
			Help: "Total number of sink apply retries",
		},
		[]string{"sink_version"},
	)

	// Audit table GC metrics
	AuditRowsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surreal_sync_audit_rows_deleted_total",
			Help: "Total number of audit rows garbage-collected below the watermark",
		},
		[]string{"source"},
	)

	GCCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "surreal_sync_gc_cycle_duration_seconds",
			Help:    "Time taken for an audit-table GC cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SyncRowsTotal)
	prometheus.MustRegister(SyncBatchDuration)
	prometheus.MustRegister(SyncErrorsTotal)
	prometheus.MustRegister(CheckpointEmitTotal)
	prometheus.MustRegister(CheckpointLagSeconds)
	prometheus.MustRegister(ExtractorLagSeconds)
	prometheus.MustRegister(ExtractorQueueDepth)
	prometheus.MustRegister(ExtractorReconnectsTotal)
	prometheus.MustRegister(SinkApplyDuration)
	prometheus.MustRegister(SinkRetriesTotal)
	prometheus.MustRegister(AuditRowsDeletedTotal)
	prometheus.MustRegister(GCCycleDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
