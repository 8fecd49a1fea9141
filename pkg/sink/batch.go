package sink

import (
	"context"
	"sync"

	"github.com/surrealdb/surreal-sync/pkg/metrics"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// op is one queued mutation against a single table, in the order it was
// received from the driver.
type op struct {
	delete     bool
	row        types.Row
	primaryKey types.TypedValue
}

// flushFunc applies a table's queued ops to the target in input order. It is
// supplied by each SDK-version-specific sink.
type flushFunc func(ctx context.Context, table string, ops []op) error

// baseSink implements the per-table batching and ordering rules shared by
// both SDK generations: ops accumulate per table, are flushed in input
// order once batchSize is reached or Flush is called explicitly, and a
// failed flush is surfaced with the table and the batch's last key without advancing
// anything (the driver owns checkpoint commit, not this package).
type baseSink struct {
	version   Version
	batchSize int
	flush     flushFunc

	mu      sync.Mutex
	pending map[string][]op
}

func newBaseSink(version Version, batchSize int, flush flushFunc) *baseSink {
	return &baseSink{
		version:   version,
		batchSize: batchSize,
		flush:     flush,
		pending:   make(map[string][]op),
	}
}

func (b *baseSink) WriteRecord(ctx context.Context, row types.Row) error {
	return b.enqueue(ctx, row.Table, op{row: row})
}

func (b *baseSink) DeleteRecord(ctx context.Context, table string, primaryKey types.TypedValue) error {
	return b.enqueue(ctx, table, op{delete: true, primaryKey: primaryKey})
}

func (b *baseSink) enqueue(ctx context.Context, table string, o op) error {
	b.mu.Lock()
	b.pending[table] = append(b.pending[table], o)
	full := len(b.pending[table]) >= b.batchSize
	var batch []op
	if full {
		batch = b.pending[table]
		b.pending[table] = nil
	}
	b.mu.Unlock()

	if !full {
		return nil
	}
	return b.flushTable(ctx, table, batch)
}

func (b *baseSink) Flush(ctx context.Context) error {
	b.mu.Lock()
	tables := make(map[string][]op, len(b.pending))
	for t, ops := range b.pending {
		if len(ops) > 0 {
			tables[t] = ops
		}
	}
	b.pending = make(map[string][]op)
	b.mu.Unlock()

	for table, ops := range tables {
		if err := b.flushTable(ctx, table, ops); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseSink) flushTable(ctx context.Context, table string, batch []op) error {
	timer := metrics.NewTimer()
	err := b.flush(ctx, table, batch)
	timer.ObserveDurationVec(metrics.SinkApplyDuration, string(b.version))
	if err != nil {
		last := batch[len(batch)-1]
		key := "?"
		if last.delete {
			if s, kerr := PrimaryKeyString(last.primaryKey); kerr == nil {
				key = s
			}
		} else if s, kerr := PrimaryKeyString(last.row.PrimaryKeyValue()); kerr == nil {
			key = s
		}
		return &WriteError{Table: table, PrimaryKey: key, Err: err}
	}
	return nil
}
