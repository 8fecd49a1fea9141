// Package driver implements the two sync algorithms the rest of the system
// is built to serve: a full-sync driver that takes a consistent initial
// snapshot bracketed by FullSyncStart/FullSyncEnd checkpoints, and an
// incremental driver that resumes change capture from a durable checkpoint
// until a deadline, a target checkpoint, or cancellation. Both are generic
// over the source.Extractor capability interface and the sink.Sink
// contract, never type-switching on a concrete source.
package driver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/sink"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// Options configures both drivers.
type Options struct {
	// SourceName tags metrics and logs, e.g. "postgresql-logical".
	SourceName string

	// BatchSize bounds how many changes are applied before progress
	// (checkpoint emission / slot advance / offset commit) is committed.
	// Progress happens only after a batch is fully acknowledged by the
	// sink — never partially.
	BatchSize int

	// Events, if non-nil, receives lifecycle events (started, batch
	// applied, checkpoint saved, completed, failed) as the drivers run. A
	// nil broker disables publication entirely; the caller decides whether
	// anything subscribes to it.
	Events *events.Broker

	// PGState and PGStateID, if PGState is non-nil, drive the PostgreSQL
	// logical-decoding state machine (pkg/pgstate) alongside the ordinary
	// checkpoint/slot bookkeeping: RunFullSync transitions Pending->Initial
	// once FullSyncStart is durably recorded, and RunIncremental transitions
	// Initial->Incremental before it starts applying. Every other source
	// leaves PGState nil and the transitions are skipped entirely.
	PGState   *pgstate.Store
	PGStateID pgstate.StateID
}

// publish is a nil-safe wrapper so both drivers can report lifecycle events
// without checking opts.Events themselves on every call site.
func publish(b *events.Broker, typ events.EventType, sourceName, message string, meta map[string]string) {
	if b == nil {
		return
	}
	if meta == nil {
		meta = map[string]string{}
	}
	meta["source"] = sourceName
	b.Publish(&events.Event{Type: typ, Message: message, Metadata: meta})
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 500
	}
	return o.BatchSize
}

func (o Options) sourceName() string {
	if o.SourceName == "" {
		return "unknown"
	}
	return o.SourceName
}

// applyChange routes one Change to the sink. Begin/Commit are advisory and
// are skipped without touching the sink.
func applyChange(ctx context.Context, s sink.Sink, ch types.Change) error {
	switch ch.Op {
	case types.OpInsert, types.OpUpdate:
		return s.WriteRecord(ctx, ch.Row)
	case types.OpDelete:
		key := types.CompositeKey(ch.PrimaryKey, ch.DeletedKey)
		return s.DeleteRecord(ctx, ch.Table, key)
	case types.OpBegin, types.OpCommit:
		return nil
	default:
		return fmt.Errorf("%w: unknown change op %q", errs.ErrProtocol, ch.Op)
	}
}

// applyBatchAndFlush applies every change in batch then flushes the sink,
// so the caller's subsequent checkpoint emission is only ever committed
// after every row in the batch is durably written. No partial-batch commits.
func applyBatchAndFlush(ctx context.Context, s sink.Sink, batch []types.Change, logger zerolog.Logger, sourceName string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncBatchDuration, sourceName, "")

	for _, ch := range batch {
		if err := applyChange(ctx, s, ch); err != nil {
			metrics.SyncErrorsTotal.WithLabelValues(sourceName, "apply").Inc()
			return fmt.Errorf("%w: apply change: %v", errs.ErrTransientDownstream, err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues(sourceName, "flush").Inc()
		return fmt.Errorf("%w: flush batch: %v", errs.ErrTransientDownstream, err)
	}
	logger.Debug().Int("changes", len(batch)).Msg("batch applied")
	return nil
}

// emitCheckpoint persists cp under phase and records the lag/emit metrics
// the rest of the system's observability surface expects.
func emitCheckpoint(ctx context.Context, store checkpoint.Store, phase checkpoint.Phase, cp checkpoint.Checkpoint, sourceName string, logger zerolog.Logger, bus *events.Broker) error {
	if err := store.Emit(ctx, phase, cp); err != nil {
		return fmt.Errorf("%w: emit %s checkpoint: %v", errs.ErrTransientDownstream, phase, err)
	}
	metrics.CheckpointEmitTotal.WithLabelValues(sourceName).Inc()
	metrics.CheckpointLagSeconds.WithLabelValues(sourceName).Set(0)
	logger.Info().Str("checkpoint", cp.String()).Str("phase", string(phase)).Msg("checkpoint emitted")
	publish(bus, events.EventCheckpointSaved, sourceName, cp.String(), map[string]string{"phase": string(phase)})
	return nil
}

// drainBatch collects up to limit changes from changes, returning early
// (with eos=true) if the channel closes first. errCh is watched on every
// iteration so a fatal extractor error surfaces without waiting for a full
// batch; once errCh is closed with no error it is nilled out so the select
// stops spinning on it (a nil channel blocks forever and so is simply
// skipped by select).
//
// Extractors close both channels via deferred close() calls on the same
// return path that sends a fatal error, so a closed changes channel and a
// buffered fatal error can become select-ready in the same instant. A bare
// select would pick between them arbitrarily, risking a fatal error being
// read as ordinary end-of-stream; a closed changes channel is therefore
// never trusted as EOS until a non-blocking check confirms errCh has
// nothing pending.
func drainBatch(ctx context.Context, changes <-chan types.Change, errCh <-chan error, limit int) ([]types.Change, bool, error) {
	batch := make([]types.Change, 0, limit)
	for len(batch) < limit {
		select {
		case <-ctx.Done():
			return batch, false, ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return batch, false, err
			}
		case ch, ok := <-changes:
			if !ok {
				select {
				case err, ok2 := <-errCh:
					if ok2 && err != nil {
						return batch, false, err
					}
				default:
				}
				return batch, true, nil
			}
			batch = append(batch, ch)
		}
	}
	return batch, false, nil
}
