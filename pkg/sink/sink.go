// Package sink implements the apply side of the pipeline: idempotent
// upsert/delete of Rows into the target multi-model store, batched per
// table and bounded by a configured batch size.
package sink

import (
	"context"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

// Sink is the contract every driver writes through. Both WriteRecord and
// DeleteRecord must be idempotent: re-applying the same call after a
// crash-and-resume must leave the target in the same state.
type Sink interface {
	// WriteRecord upserts row keyed by type::thing(row.Table, row.PrimaryKey).
	WriteRecord(ctx context.Context, row types.Row) error

	// DeleteRecord deletes the record at table/primaryKey if present. It is
	// not an error for the record to already be absent.
	DeleteRecord(ctx context.Context, table string, primaryKey types.TypedValue) error

	// Flush forces any buffered batch to be written before returning.
	Flush(ctx context.Context) error

	// Close releases the underlying connection. Flush should be called
	// first; Close does not implicitly flush.
	Close() error
}

// Version identifies which target SDK generation a Sink talks to. Both
// versions share the identical behavioral contract above; only the wire
// protocol underneath differs.
type Version string

const (
	VersionV2 Version = "v2"
	VersionV3 Version = "v3"
)

// Options configures either Sink implementation.
type Options struct {
	// Endpoint is the target's RPC endpoint, e.g. "http://localhost:8000".
	Endpoint string
	Namespace string
	Database  string
	Username  string
	Password  string

	// BatchSize bounds how many rows accumulate per table before a batch is
	// flushed. Ordering within a batch follows input order.
	BatchSize int
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 500
	}
	return o.BatchSize
}

// WriteError is returned by a batch flush, naming the table and the primary
// key of the last op in the failed batch so the driver can log it and
// refuse to advance its checkpoint.
type WriteError struct {
	Table      string
	PrimaryKey string
	Err        error
}

func (e *WriteError) Error() string {
	return "sink: write failed for " + e.Table + ":" + e.PrimaryKey + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error { return e.Err }
