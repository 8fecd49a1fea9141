/*
Package metrics provides Prometheus metrics collection and exposition for surreal-sync.

The metrics package defines and registers all surreal-sync metrics using the
Prometheus client library, providing observability into sync throughput, extractor
lag, checkpoint freshness, and sink apply latency. Metrics are exposed via HTTP
endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Counter: rows synced, checkpoints emitted  │          │
	│  │  Gauge: extractor lag, queue depth          │          │
	│  │  Histogram: batch apply duration            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Sync: rows, batch duration, errors         │          │
	│  │  Checkpoint: emit count, lag                │          │
	│  │  Extractor: lag, queue depth, reconnects    │          │
	│  │  Sink: apply duration, retries              │          │
	│  │  Audit GC: rows deleted, cycle duration     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

surreal_sync_rows_total{source, table, phase}:
  - Type: Counter
  - Description: Total rows synced, labeled by source, table, and phase (full/incremental)

surreal_sync_batch_duration_seconds{source, table}:
  - Type: Histogram
  - Description: Time to apply a batch of changes to the sink

surreal_sync_errors_total{source, stage}:
  - Type: Counter
  - Description: Errors by source and pipeline stage (extract/transform/apply)

surreal_sync_checkpoint_emit_total{source}:
  - Type: Counter
  - Description: Checkpoints persisted, by source

surreal_sync_checkpoint_lag_seconds{source}:
  - Type: Gauge
  - Description: Age of the last persisted checkpoint

surreal_sync_extractor_lag_seconds{source}:
  - Type: Gauge
  - Description: Time between a source-side change and the extractor observing it

surreal_sync_extractor_queue_depth{source}:
  - Type: Gauge
  - Description: Changes buffered in the extractor's output channel

surreal_sync_extractor_reconnects_total{source}:
  - Type: Counter
  - Description: Times an extractor reconnected to its source

surreal_sync_sink_apply_duration_seconds{sink_version}:
  - Type: Histogram
  - Description: Time for the sink to apply a batch

surreal_sync_sink_retries_total{sink_version}:
  - Type: Counter
  - Description: Sink apply retries

surreal_sync_audit_rows_deleted_total{source}:
  - Type: Counter
  - Description: Audit rows garbage-collected below the watermark

surreal_sync_gc_cycle_duration_seconds:
  - Type: Histogram
  - Description: Duration of an audit-table GC cycle

# Usage

	import "github.com/surrealdb/surreal-sync/pkg/metrics"

	metrics.SyncRowsTotal.WithLabelValues("postgresql", "public.orders", "full").Add(float64(len(rows)))

	timer := metrics.NewTimer()
	// ... apply batch ...
	timer.ObserveDurationVec(metrics.SinkApplyDuration, "v2")

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/driver: Records sync row counts, batch durations, errors, checkpoint
    emission and checkpoint lag
  - pkg/sink: Records sink apply duration
  - pkg/auditgc: Records GC cycle duration and deleted audit rows
  - Collector: Sets the extractor lag, queue depth, reconnect and sink retry
    metrics from a StatsProvider; nothing in this repository starts one
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init()
  - MustRegister panics on duplicate registration

Label Discipline:
  - Label by source and table, never by row ID or timestamp
  - Keep label cardinality bounded (source families, table names)

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration/ObserveDurationVec when the operation completes

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
