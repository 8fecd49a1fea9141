package driver

import (
	"context"
	"fmt"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/sink"
	"github.com/surrealdb/surreal-sync/pkg/source"
)

// ErrFullSyncFailed wraps a fatal failure during RunFullSync. If
// StartRecorded is true, the FullSyncStart checkpoint made it to the store
// before the failure, and the operator may resume with RunIncremental from
// that checkpoint instead of restarting the snapshot from scratch.
type ErrFullSyncFailed struct {
	StartRecorded bool
	Err           error
}

func (e *ErrFullSyncFailed) Error() string {
	if e.StartRecorded {
		return fmt.Sprintf("driver: full sync failed after FullSyncStart was recorded, resume with incremental sync: %v", e.Err)
	}
	return fmt.Sprintf("driver: full sync failed before FullSyncStart was recorded: %v", e.Err)
}

func (e *ErrFullSyncFailed) Unwrap() error { return e.Err }

// RunFullSync drives a consistent initial snapshot of extractor into s:
// capture the pre-snapshot position and emit it as
// FullSyncStart, stream every row of the snapshot through the sink in
// batches, then capture the post-snapshot position and emit it as
// FullSyncEnd. Failure after FullSyncStart has been durably recorded is
// non-fatal to the system as a whole: the operator can resume with
// RunIncremental from that same checkpoint.
func RunFullSync(ctx context.Context, extractor source.FullSyncExtractor, s sink.Sink, store checkpoint.Store, opts Options) error {
	logger := log.WithSource(opts.sourceName())
	sourceName := opts.sourceName()
	bus := opts.Events

	publish(bus, events.EventFullSyncStarted, sourceName, "full sync starting", nil)

	if err := extractor.Initialize(ctx); err != nil {
		wrapped := &ErrFullSyncFailed{StartRecorded: false, Err: fmt.Errorf("%w: initialize: %v", errs.ErrResource, err)}
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}
	defer func() {
		if err := extractor.Cleanup(ctx); err != nil {
			logger.Warn().Err(err).Msg("extractor cleanup failed")
		}
	}()

	preCP, err := extractor.PreCheckpoint(ctx)
	if err != nil {
		wrapped := &ErrFullSyncFailed{StartRecorded: false, Err: fmt.Errorf("pre-checkpoint: %w", err)}
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}
	if err := emitCheckpoint(ctx, store, checkpoint.FullSyncStart, preCP, sourceName, logger, bus); err != nil {
		wrapped := &ErrFullSyncFailed{StartRecorded: false, Err: err}
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}

	if opts.PGState != nil {
		if err := opts.PGState.Transition(ctx, opts.PGStateID, pgstate.Initial(preCP.LSN)); err != nil {
			wrapped := &ErrFullSyncFailed{StartRecorded: true, Err: fmt.Errorf("pg logical state transition: %w", err)}
			publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
			return wrapped
		}
	}

	changes, errCh := extractor.Snapshot(ctx)
	rowCount := 0
	for {
		batch, eos, err := drainBatch(ctx, changes, errCh, opts.batchSize())
		if len(batch) > 0 {
			if applyErr := applyBatchAndFlush(ctx, s, batch, logger, sourceName); applyErr != nil {
				wrapped := &ErrFullSyncFailed{StartRecorded: true, Err: applyErr}
				publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
				return wrapped
			}
			rowCount += len(batch)
			metrics.SyncRowsTotal.WithLabelValues(sourceName, "*", string(checkpoint.FullSyncStart)).Add(float64(len(batch)))
		}
		if err != nil {
			wrapped := &ErrFullSyncFailed{StartRecorded: true, Err: fmt.Errorf("snapshot scan: %w", err)}
			publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
			return wrapped
		}
		if eos {
			break
		}
	}

	postCP, err := extractor.PostCheckpoint(ctx)
	if err != nil {
		wrapped := &ErrFullSyncFailed{StartRecorded: true, Err: fmt.Errorf("post-checkpoint: %w", err)}
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}
	if err := emitCheckpoint(ctx, store, checkpoint.FullSyncEnd, postCP, sourceName, logger, bus); err != nil {
		wrapped := &ErrFullSyncFailed{StartRecorded: true, Err: err}
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}

	logger.Info().Int("rows", rowCount).Msg("full sync complete")
	publish(bus, events.EventFullSyncCompleted, sourceName, "full sync complete", map[string]string{"rows": fmt.Sprintf("%d", rowCount)})
	return nil
}
