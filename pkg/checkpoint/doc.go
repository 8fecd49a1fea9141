/*
Package checkpoint implements the durable, typed checkpoint/resume protocol
that makes the full-sync-to-incremental-sync handoff lossless.

A Checkpoint is a source-tagged sum: the same value shape carries a Neo4j
as-of instant, a MongoDB resume token, a PostgreSQL/MySQL trigger
sequence_id, a PostgreSQL logical-decoding LSN, or (for display only) a
Kafka consumer group's per-partition offsets. Every variant round-trips
through a canonical ASCII wire form via Serialize/Parse, and is ordered
within its own variant via Compare.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                      Checkpoint Store                     │
	│  Emit(phase, cp)  ReadFirst(phase)  List()                │
	└───────────┬─────────────────────────────┬────────────────┘
	            │                             │
	      ┌─────▼─────┐                 ┌─────▼─────┐
	      │ FileStore │                 │ BoltStore │
	      │  JSON dir │                 │  bbolt db │
	      └───────────┘                 └───────────┘

# Usage

	store, _ := checkpoint.NewFileStore("/var/lib/surreal-sync/checkpoints")

	cp := checkpoint.PostgresLogicalCheckpoint("0/1A2B3C")
	store.Emit(ctx, checkpoint.FullSyncStart, cp)

	resumeFrom, err := store.ReadFirst(ctx, checkpoint.FullSyncStart)

# Phases

FullSyncStart is captured before the snapshot scan; FullSyncEnd is captured
after. Incremental sync always resumes from FullSyncStart — never
FullSyncEnd — so no change between the two is missed; duplicates this
produces are absorbed by idempotent upsert at the sink.

# See Also

  - pkg/driver for how phases bracket the full-sync algorithm
  - pkg/source for the extractors that produce each Checkpoint variant
*/
package checkpoint
