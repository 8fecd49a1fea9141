// Package auditgc periodically deletes audit-table rows that are older than
// every active incremental consumer's checkpoint, so trigger-based CDC
// sources (PostgreSQL, MySQL) don't grow their audit table without bound.
package auditgc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/metrics"
)

// Store is implemented by a source's audit-table driver (postgresql, mysql).
// Watermark returns the lowest sequence_id still needed by any consumer;
// rows with a sequence_id below it are safe to delete.
type Store interface {
	Watermark(ctx context.Context) (int64, error)
	DeleteBelowWatermark(ctx context.Context, watermark int64) (int64, error)
}

// GC runs a periodic collection cycle against a single source's audit table.
type GC struct {
	source   string
	store    Store
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
}

// New creates a garbage collector for the given source's audit table.
func New(source string, store Store, interval time.Duration) *GC {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &GC{
		source:   source,
		store:    store,
		interval: interval,
		logger:   log.WithSource(source),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the collection loop.
func (g *GC) Start() {
	go g.run()
}

// Stop stops the collector.
func (g *GC) Stop() {
	close(g.stopCh)
}

func (g *GC) run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info().Msg("audit gc started")

	for {
		select {
		case <-ticker.C:
			if err := g.collect(context.Background()); err != nil {
				g.logger.Error().Err(err).Msg("audit gc cycle failed")
			}
		case <-g.stopCh:
			g.logger.Info().Msg("audit gc stopped")
			return
		}
	}
}

// collect performs one garbage collection cycle.
func (g *GC) collect(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GCCycleDuration)

	g.mu.Lock()
	defer g.mu.Unlock()

	watermark, err := g.store.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("determine watermark: %w", err)
	}

	deleted, err := g.store.DeleteBelowWatermark(ctx, watermark)
	if err != nil {
		return fmt.Errorf("delete below watermark %d: %w", watermark, err)
	}

	if deleted > 0 {
		metrics.AuditRowsDeletedTotal.WithLabelValues(g.source).Add(float64(deleted))
		g.logger.Debug().Int64("watermark", watermark).Int64("deleted", deleted).Msg("audit gc cycle")
	}

	return nil
}
