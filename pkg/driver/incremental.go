package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/sink"
	"github.com/surrealdb/surreal-sync/pkg/source"
)

// IncrementalOptions extends Options with the resume/exit parameters
// RunIncremental needs.
type IncrementalOptions struct {
	Options

	// From is the checkpoint incremental sync resumes from. Required.
	From checkpoint.Checkpoint

	// To, if Kind is non-empty, is the checkpoint at or past which the loop
	// exits. Optional — a streaming-only source like Kafka has no natural
	// "to" and runs until Deadline or cancellation instead.
	To checkpoint.Checkpoint

	// Deadline bounds how long the loop runs. Required; callers that want
	// to run effectively forever pass a deadline far in the future.
	Deadline time.Time
}

// RunIncremental resumes extractor at opts.From and applies changes to s in
// batches, confirming position to the extractor (via source.Advancer, for
// sources whose protocol needs it — PostgreSQL logical's replication slot)
// only after each batch is fully acknowledged by the sink, until opts.To is
// reached (monotone comparison within the checkpoint's variant),
// opts.Deadline passes, ctx is cancelled, or the extractor reaches
// end-of-stream. Delivery is at-least-once and apply is idempotent: a
// restart from the last confirmed position never loses a change, and
// re-applying one already seen is a no-op.
//
// Unlike the full-sync driver, RunIncremental does not itself persist the
// resumed-from position to a checkpoint.Store: for most sources that
// position already lives durably upstream (the PG replication slot, Kafka's
// committed group offsets) or must be captured by the operator at the point
// they want to resume from (Mongo's resume token, a trigger source's
// sequence_id) and supplied back via --incremental-from. RunIncremental
// logs its current checkpoint after every batch so that capture is
// possible; store is accepted for symmetry with RunFullSync and reserved
// for callers that do want that history persisted, but is not written to
// here.
func RunIncremental(ctx context.Context, extractor source.IncrementalExtractor, s sink.Sink, store checkpoint.Store, opts IncrementalOptions) error {
	logger := log.WithSource(opts.sourceName())
	sourceName := opts.sourceName()
	bus := opts.Events

	hasTo := opts.To.Kind != ""
	advancer, canAdvance := extractor.(source.Advancer)

	publish(bus, events.EventIncrementalStarted, sourceName, "incremental sync starting", map[string]string{"from": opts.From.String()})

	if err := extractor.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: initialize: %v", errs.ErrResource, err)
	}
	defer func() {
		if err := extractor.Cleanup(ctx); err != nil {
			logger.Warn().Err(err).Msg("extractor cleanup failed")
		}
	}()

	if err := extractor.Seek(ctx, opts.From); err != nil {
		return fmt.Errorf("%w: seek to %s: %v", errs.ErrCheckpointInvalid, opts.From, err)
	}

	if opts.PGState != nil {
		current, _, err := opts.PGState.Get(ctx, opts.PGStateID)
		if err != nil {
			return fmt.Errorf("%w: read pg logical state: %v", errs.ErrResource, err)
		}
		if current.Phase != pgstate.PhaseIncremental {
			if err := opts.PGState.Transition(ctx, opts.PGStateID, pgstate.Incremental()); err != nil {
				return fmt.Errorf("%w: pg logical state transition: %v", errs.ErrInvalidStateTransition, err)
			}
		}
	}

	deadlineCtx, cancel := context.WithDeadline(ctx, opts.Deadline)
	defer cancel()

	changes, errCh := extractor.StreamChanges(deadlineCtx)
	rowCount := 0
	for {
		batch, eos, err := drainBatch(deadlineCtx, changes, errCh, opts.batchSize())
		if len(batch) > 0 {
			if applyErr := applyBatchAndFlush(ctx, s, batch, logger, sourceName); applyErr != nil {
				wrapped := fmt.Errorf("incremental apply: %w", applyErr)
				publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
				return wrapped
			}
			rowCount += len(batch)
			metrics.SyncRowsTotal.WithLabelValues(sourceName, "*", "incremental").Add(float64(len(batch)))

			current := extractor.CurrentCheckpoint()
			if canAdvance {
				if advErr := advancer.AdvanceCheckpoint(ctx, current); advErr != nil {
					wrapped := fmt.Errorf("%w: advance position: %v", errs.ErrTransientDownstream, advErr)
					publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
					return wrapped
				}
			}
			metrics.CheckpointLagSeconds.WithLabelValues(sourceName).Set(0)
			logger.Info().Str("checkpoint", current.String()).Int("batch", len(batch)).Msg("incremental batch committed")
			publish(bus, events.EventIncrementalBatch, sourceName, current.String(), map[string]string{"rows": fmt.Sprintf("%d", len(batch))})

			if hasTo {
				cmp, cmpErr := checkpoint.Compare(current, opts.To)
				if cmpErr == nil && cmp >= 0 {
					logger.Info().Int("rows", rowCount).Msg("incremental sync reached target checkpoint")
					return nil
				}
			}
		}

		if err != nil {
			if ctxDeadlineOrCancelled(err) {
				logger.Info().Int("rows", rowCount).Msg("incremental sync stopped at deadline or cancellation")
				return nil
			}
			wrapped := fmt.Errorf("%w: stream changes: %v", errs.ErrTransientUpstream, err)
			publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
			return wrapped
		}
		if eos {
			logger.Info().Int("rows", rowCount).Msg("incremental sync reached end of stream")
			return nil
		}
	}
}

func ctxDeadlineOrCancelled(err error) bool {
	return err == context.DeadlineExceeded || err == context.Canceled
}
