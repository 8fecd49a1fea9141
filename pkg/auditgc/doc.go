/*
Package auditgc provides background garbage collection for trigger-based
audit-table CDC sources.

PostgreSQL and MySQL trigger-based extraction appends every row change to an
audit table (surreal_sync_changes) with a monotonically increasing
sequence_id. Left unchecked, this table grows without bound. auditgc runs a
background loop that periodically determines the lowest sequence_id any
active incremental consumer still needs (the watermark) and deletes
everything below it.

# Architecture

auditgc operates on a fixed interval, sampling the watermark and deleting
rows below it:

	┌────────────────────────────────────────────────────────────┐
	│                    GC Loop (every N minutes)                │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	                 ▼
	          Watermark(ctx)
	                 │
	                 ▼
	   DeleteBelowWatermark(ctx, watermark)
	                 │
	                 ▼
	   Observe metrics.AuditRowsDeletedTotal

# Core Components

GC: the collection engine bound to one source's audit table.

	gc := auditgc.New("postgresql", store, 5*time.Minute)
	gc.Start()
	defer gc.Stop()

GC is stateless between cycles — it re-derives the watermark from the Store
on every tick rather than tracking it itself, so a missed or restarted cycle
still converges.

# Store Contract

Store is implemented per source (pkg/source/postgresql, pkg/source/mysql).
Watermark must reflect every consumer still reading from the audit table —
typically the minimum persisted checkpoint sequence_id across all incremental
syncs using that audit table. DeleteBelowWatermark must be safe to call
concurrently with ongoing inserts from the trigger.

# Design Notes

Level-Triggered GC:

The watermark is recomputed from scratch each cycle rather than tracked
incrementally, so GC converges correctly even if a cycle is skipped or the
process restarts mid-run.

Conservative Watermark:

A Store implementation should prefer under-deleting (leaving extra audit
rows) over over-deleting: an incremental consumer than cannot find a
sequence_id it expects after a resume has no way to detect whether rows were
lost to GC or never existed.

# See Also

  - pkg/checkpoint for the sequence_id wire format GC watermarks are compared against
  - pkg/source/postgresql and pkg/source/mysql for audit-table schema and triggers
*/
package auditgc
