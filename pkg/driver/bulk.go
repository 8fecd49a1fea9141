package driver

import (
	"context"
	"fmt"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
	"github.com/surrealdb/surreal-sync/pkg/sink"
	"github.com/surrealdb/surreal-sync/pkg/source"
)

// RunBulkLoad drains extractor to end-of-stream and applies every change to
// s, for one-shot sources that carry no checkpoint kind — the bulk file
// readers (CSV, JSONL). Unlike RunFullSync there is nothing
// to bracket with FullSyncStart/FullSyncEnd: a static file has no position
// to resume from, so a retry simply re-reads it from the top.
func RunBulkLoad(ctx context.Context, extractor source.Extractor, s sink.Sink, opts Options) error {
	logger := log.WithSource(opts.sourceName())
	sourceName := opts.sourceName()
	bus := opts.Events

	publish(bus, events.EventFullSyncStarted, sourceName, "bulk load starting", nil)

	if err := extractor.Initialize(ctx); err != nil {
		wrapped := fmt.Errorf("%w: initialize: %v", errs.ErrResource, err)
		publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
		return wrapped
	}
	defer func() {
		if err := extractor.Cleanup(ctx); err != nil {
			logger.Warn().Err(err).Msg("extractor cleanup failed")
		}
	}()

	changes, errCh := extractor.StreamChanges(ctx)
	rowCount := 0
	for {
		batch, eos, err := drainBatch(ctx, changes, errCh, opts.batchSize())
		if len(batch) > 0 {
			if applyErr := applyBatchAndFlush(ctx, s, batch, logger, sourceName); applyErr != nil {
				publish(bus, events.EventSyncFailed, sourceName, applyErr.Error(), nil)
				return applyErr
			}
			rowCount += len(batch)
			metrics.SyncRowsTotal.WithLabelValues(sourceName, "*", "bulk").Add(float64(len(batch)))
		}
		if err != nil {
			wrapped := fmt.Errorf("bulk load: %w", err)
			publish(bus, events.EventSyncFailed, sourceName, wrapped.Error(), nil)
			return wrapped
		}
		if eos {
			break
		}
	}

	logger.Info().Int("rows", rowCount).Msg("bulk load complete")
	publish(bus, events.EventFullSyncCompleted, sourceName, "bulk load complete", map[string]string{"rows": fmt.Sprintf("%d", rowCount)})
	return nil
}
