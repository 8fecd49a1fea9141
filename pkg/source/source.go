// Package source defines the capability interface every source family
// (PostgreSQL, MySQL, MongoDB, Neo4j, Kafka, bulk files) implements so the
// full-sync and incremental drivers stay generic over which one they're
// pointed at.
package source

import (
	"context"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// Extractor is the single capability set every source implements: connect,
// stream, report position, disconnect. The driver never type-switches on a
// concrete extractor; it only ever calls these four methods plus the sink.
type Extractor interface {
	// Initialize opens the upstream connection and performs whatever
	// pre-flight setup the source needs (slot creation, trigger
	// installation, change-stream open). It is called once before the
	// first StreamChanges.
	Initialize(ctx context.Context) error

	// StreamChanges returns a channel of Changes in source-commit order and
	// an error channel used at most once for a fatal extractor failure. The
	// changes channel is closed when the extractor reaches end-of-stream
	// (snapshot sources) or ctx is cancelled (streaming sources); the error
	// channel is closed when no further error will be reported.
	//
	// The returned channel is bounded by the extractor's configured buffer
	// size: this is the sole backpressure point — a slow sink blocks the
	// extractor by leaving the channel full, never by an unbounded queue.
	StreamChanges(ctx context.Context) (<-chan types.Change, <-chan error)

	// CurrentCheckpoint reports the extractor's position as of the last
	// change it emitted. The driver reads this to commit progress after a
	// batch is fully applied.
	CurrentCheckpoint() checkpoint.Checkpoint

	// Cleanup tears down the upstream connection. It is safe to call
	// Cleanup without ever having called Initialize.
	Cleanup(ctx context.Context) error
}

// FullSyncExtractor is implemented by sources that support an initial
// consistent snapshot (every source except Kafka, which is streaming-only).
// PreCheckpoint/PostCheckpoint bracket the snapshot scan per §4.F.
type FullSyncExtractor interface {
	Extractor

	// PreCheckpoint captures the source's position immediately before the
	// snapshot scan begins; the driver emits it as FullSyncStart.
	PreCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error)

	// Snapshot iterates every row of every tracked table and sends one
	// Insert Change per row on the returned channel, closing it at EOS.
	Snapshot(ctx context.Context) (<-chan types.Change, <-chan error)

	// PostCheckpoint captures the source's position immediately after the
	// snapshot scan completes; the driver emits it as FullSyncEnd.
	PostCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error)
}

// IncrementalExtractor is implemented by sources that can resume streaming
// changes from a previously emitted checkpoint.
type IncrementalExtractor interface {
	Extractor

	// Seek positions the extractor at from before StreamChanges is called:
	// advancing a PG slot, setting a Mongo resume token, raising a
	// sequence_id high-water mark, or seeking Kafka partition offsets.
	Seek(ctx context.Context, from checkpoint.Checkpoint) error
}

// Advancer is implemented by extractors whose upstream protocol requires an
// explicit confirmation of processed position beyond simply reporting
// CurrentCheckpoint — currently only PostgreSQL logical decoding's
// replication slot, which a peek does not advance on its own.
// The incremental driver calls AdvanceCheckpoint once a batch has been
// durably applied to the sink, never before; a crash before that point
// redelivers the same batch (at-least-once). Sources that already confirm
// position as part of normal operation (Kafka's synchronous offset commit,
// MongoDB's resume token capture) do not implement this interface.
type Advancer interface {
	AdvanceCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) error
}
