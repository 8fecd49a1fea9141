// Package errs collects the sentinel errors for the shared failure taxonomy,
// used across source, sink, and driver packages so callers can classify a
// failure with errors.Is/errors.As instead of string matching.
package errs

import "errors"

var (
	// ErrTransientUpstream marks a retryable failure talking to a source
	// (network blip, broker rebalance, connection reset). Extractors do not
	// retry it: they send it on their error channel as soon as it occurs.
	ErrTransientUpstream = errors.New("surreal-sync: transient upstream error")

	// ErrTransientDownstream marks a failure writing to the sink (busy
	// target, transaction abort). The driver does not retry it: the first
	// failed write or flush fails the whole batch, and no checkpoint is
	// advanced for that batch.
	ErrTransientDownstream = errors.New("surreal-sync: transient downstream error")

	// ErrSchemaMismatch marks a column or field that doesn't match the
	// introspected schema, or an unmappable source type. Non-strict
	// configurations downgrade to text with a warning instead of returning
	// this error.
	ErrSchemaMismatch = errors.New("surreal-sync: schema mismatch")

	// ErrCheckpointInvalid marks a checkpoint that failed to parse or
	// validate. Fatal: the driver refuses to start.
	ErrCheckpointInvalid = errors.New("surreal-sync: invalid checkpoint")

	// ErrInvalidStateTransition marks an attempted PG logical-decoding state
	// transition that skips a required phase. Fatal: the operator must
	// intervene.
	ErrInvalidStateTransition = errors.New("surreal-sync: invalid state transition")

	// ErrProtocol marks a malformed wal2json frame, protobuf payload, or CSV
	// row. Fatal for the offending record; callers may downgrade this to a
	// skip-with-warning when configured to do so.
	ErrProtocol = errors.New("surreal-sync: protocol error")

	// ErrResource marks a pre-flight failure creating a replication slot,
	// installing triggers, or creating the audit table. Fatal before any
	// sync work begins.
	ErrResource = errors.New("surreal-sync: resource error")
)
