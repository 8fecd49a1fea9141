// Package syncmanager is the thin orchestration layer that
// selects RunFull or RunIncremental, owns the sink connection and its
// lifecycle, threads the checkpoint store through to the driver, and logs
// phase transitions so a cmd/ subcommand doesn't have to know any of that
// plumbing — only which extractor it built and which options the operator
// passed.
package syncmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surreal-sync/pkg/auditgc"
	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/driver"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/sink"
	"github.com/surrealdb/surreal-sync/pkg/source"
)

// Manager is the orchestrator a cmd/ subcommand drives: it never knows
// which concrete source it's running against, only the capability
// interfaces in pkg/source. It also owns the process-lifetime event broker,
// so a cmd/ subcommand that wants a progress display can Subscribe to it
// without the driver or the extractor knowing anything about reporting.
type Manager struct {
	logger zerolog.Logger
	events *events.Broker
}

// New creates a Manager and starts its event broker.
func New() *Manager {
	b := events.NewBroker()
	b.Start()
	return &Manager{logger: log.WithComponent("syncmanager"), events: b}
}

// Events returns the broker lifecycle events are published to. A cmd/
// subcommand can Subscribe before calling RunFull/RunIncremental to drive a
// progress display; nothing subscribing is a no-op, not an error.
func (m *Manager) Events() *events.Broker {
	return m.events
}

// Close stops the event broker. Callers that built a Manager with New
// should defer Close once they're done with it.
func (m *Manager) Close() {
	m.events.Stop()
}

// FullOptions configures RunFull.
type FullOptions struct {
	SourceName string
	BatchSize  int
	SinkOpts   sink.Options
	// SinkVersionOverride forces a specific target SDK generation instead of
	// auto-detecting one via sink.Detect; empty means auto-detect.
	SinkVersionOverride sink.Version

	// PGStateID, if non-zero, drives the PostgreSQL logical-decoding state
	// machine (pkg/pgstate) through the same sink connection this call
	// opens: RunFull transitions Pending->Initial once FullSyncStart is
	// durably recorded. Every non-postgresql-logical source leaves this
	// zero and the transition is skipped.
	PGStateID pgstate.StateID
}

// RunFull opens a sink connection (auto-detecting its SDK generation unless
// overridden), runs the full-sync driver against extractor, and closes the
// sink whether or not the sync succeeded.
func (m *Manager) RunFull(ctx context.Context, extractor source.FullSyncExtractor, store checkpoint.Store, opts FullOptions) error {
	logger := m.logger.With().Str("source", opts.SourceName).Str("mode", "full").Logger()
	logger.Info().Msg("starting full sync")

	s, err := sink.Detect(ctx, opts.SinkOpts, opts.SinkVersionOverride)
	if err != nil {
		return fmt.Errorf("syncmanager: open sink: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("sink close failed")
		}
	}()

	driverOpts := driver.Options{
		SourceName: opts.SourceName,
		BatchSize:  opts.BatchSize,
		Events:     m.events,
	}
	if opts.PGStateID != (pgstate.StateID{}) {
		if target, ok := s.(pgstate.TargetStore); ok {
			driverOpts.PGState = pgstate.New(target)
			driverOpts.PGStateID = opts.PGStateID
		} else {
			logger.Warn().Msg("sink does not support the pg logical state record; skipping state transition")
		}
	}

	err = driver.RunFullSync(ctx, extractor, s, store, driverOpts)
	if err != nil {
		logger.Error().Err(err).Msg("full sync failed")
		return fmt.Errorf("syncmanager: full sync: %w", err)
	}

	logger.Info().Msg("full sync finished")
	return nil
}

// IncrementalOptions configures RunIncremental.
type IncrementalOptions struct {
	SourceName string
	BatchSize  int
	SinkOpts   sink.Options
	SinkVersionOverride sink.Version

	From     checkpoint.Checkpoint
	To       checkpoint.Checkpoint
	Deadline time.Time

	// PGStateID, if non-zero, drives the PostgreSQL logical-decoding state
	// machine through the same sink connection this call opens:
	// RunIncremental transitions Initial->Incremental before it starts
	// applying changes. Every non-postgresql-logical source leaves this
	// zero and the transition is skipped.
	PGStateID pgstate.StateID
}

// RunIncremental opens a sink connection and runs the incremental driver
// against extractor from opts.From until opts.To, opts.Deadline, or
// cancellation, closing the sink afterward regardless of outcome.
func (m *Manager) RunIncremental(ctx context.Context, extractor source.IncrementalExtractor, store checkpoint.Store, opts IncrementalOptions) error {
	logger := m.logger.With().Str("source", opts.SourceName).Str("mode", "incremental").Logger()
	logger.Info().Str("from", opts.From.String()).Time("deadline", opts.Deadline).Msg("starting incremental sync")

	s, err := sink.Detect(ctx, opts.SinkOpts, opts.SinkVersionOverride)
	if err != nil {
		return fmt.Errorf("syncmanager: open sink: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("sink close failed")
		}
	}()

	driverOpts := driver.Options{
		SourceName: opts.SourceName,
		BatchSize:  opts.BatchSize,
		Events:     m.events,
	}
	if opts.PGStateID != (pgstate.StateID{}) {
		if target, ok := s.(pgstate.TargetStore); ok {
			driverOpts.PGState = pgstate.New(target)
			driverOpts.PGStateID = opts.PGStateID
		} else {
			logger.Warn().Msg("sink does not support the pg logical state record; skipping state transition")
		}
	}

	err = driver.RunIncremental(ctx, extractor, s, store, driver.IncrementalOptions{
		Options:  driverOpts,
		From:     opts.From,
		To:       opts.To,
		Deadline: opts.Deadline,
	})
	if err != nil {
		logger.Error().Err(err).Msg("incremental sync failed")
		return fmt.Errorf("syncmanager: incremental sync: %w", err)
	}

	logger.Info().Msg("incremental sync finished")
	return nil
}

// RunBulkLoad opens a sink connection and loads extractor's entire stream
// into it in one pass — for the bulk file sources, which carry no
// checkpoint kind and so go through neither RunFull nor RunIncremental.
func (m *Manager) RunBulkLoad(ctx context.Context, extractor source.Extractor, opts FullOptions) error {
	logger := m.logger.With().Str("source", opts.SourceName).Str("mode", "bulk").Logger()
	logger.Info().Msg("starting bulk load")

	s, err := sink.Detect(ctx, opts.SinkOpts, opts.SinkVersionOverride)
	if err != nil {
		return fmt.Errorf("syncmanager: open sink: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("sink close failed")
		}
	}()

	if err := driver.RunBulkLoad(ctx, extractor, s, driver.Options{
		SourceName: opts.SourceName,
		BatchSize:  opts.BatchSize,
		Events:     m.events,
	}); err != nil {
		logger.Error().Err(err).Msg("bulk load failed")
		return fmt.Errorf("syncmanager: bulk load: %w", err)
	}

	logger.Info().Msg("bulk load finished")
	return nil
}

// StartAuditGC starts a background garbage collector against a trigger-based
// source's audit table (PostgreSQL/MySQL trigger extractors implement
// auditgc.Store) and returns it so the caller can Stop it once the
// incremental run it's paired with exits. A zero interval uses auditgc's
// default.
func (m *Manager) StartAuditGC(sourceName string, store auditgc.Store, interval time.Duration) *auditgc.GC {
	gc := auditgc.New(sourceName, store, interval)
	gc.Start()
	return gc
}
