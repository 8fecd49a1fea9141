package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// wal2jsonPluginArgs mirrors the slot options this extractor requires: format
// version 2, LSNs and primary keys included, transaction framing disabled
// (not required for an upsert/delete apply model).
var wal2jsonPluginArgs = []string{
	"format-version '2'",
	"include-lsn 'true'",
	"include-transaction 'false'",
	"include-pk 'true'",
}

// LogicalExtractor implements wal2json-based logical decoding (spec
// §4.C.1). Changes are read with a peek that does not advance the slot; the
// driver calls Advance only once every change in a batch has been applied
// by the sink, so a crash mid-batch redelivers it (at-least-once).
type LogicalExtractor struct {
	cfg  LogicalConfig
	pool *pgxpool.Pool

	repl       *pgconn.PgConn
	schema     Schema
	tableSet   map[string]bool
	lastLSN    pglogrepl.LSN
	confirmed  pglogrepl.LSN
	clientXLogPos pglogrepl.LSN
}

// NewLogicalExtractor creates a wal2json logical-decoding extractor.
// Initialize must be called before use.
func NewLogicalExtractor(pool *pgxpool.Pool, cfg LogicalConfig) *LogicalExtractor {
	tableSet := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tableSet[t] = true
	}
	return &LogicalExtractor{cfg: cfg, pool: pool, tableSet: tableSet}
}

// Initialize opens a dedicated replication connection, creates the
// replication slot with the wal2json output plugin if it doesn't already
// exist, and collects the schema used to decode column wire values.
func (e *LogicalExtractor) Initialize(ctx context.Context) error {
	schema, err := CollectSchema(ctx, e.pool, e.cfg.Config)
	if err != nil {
		return err
	}
	e.schema = schema

	replConnStr := withReplicationParam(e.cfg.ConnectionString)
	connCfg, err := pgconn.ParseConfig(replConnStr)
	if err != nil {
		return fmt.Errorf("%w: parse replication connection string: %v", errs.ErrResource, err)
	}
	repl, err := pgconn.ConnectConfig(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("%w: open replication connection: %v", errs.ErrResource, err)
	}
	e.repl = repl

	_, err = pglogrepl.CreateReplicationSlot(ctx, repl, e.cfg.Slot, "wal2json",
		pglogrepl.CreateReplicationSlotOptions{Temporary: false, Mode: pglogrepl.LogicalReplication})
	if err != nil && !isSlotExistsError(err) {
		repl.Close(ctx)
		return fmt.Errorf("%w: create replication slot %s: %v", errs.ErrResource, e.cfg.Slot, err)
	}

	log.WithSource("postgresql-logical").Info().Str("slot", e.cfg.Slot).Msg("logical extractor initialized")
	return nil
}

func isSlotExistsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

// withReplicationParam appends replication=database to a connection string
// if not already present, required for pgconn to speak the replication
// protocol instead of the normal simple/extended query protocol.
func withReplicationParam(connStr string) string {
	if strings.Contains(connStr, "replication=") {
		return connStr
	}
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		return connStr + sep + "replication=database"
	}
	return connStr + " replication=database"
}

// PreCheckpoint records the server's current WAL position before the
// snapshot scan begins; this becomes pre_lsn for the pgstate state machine
// and the FullSyncStart checkpoint.
func (e *LogicalExtractor) PreCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	lsn, err := currentLSN(ctx, e.pool)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	return checkpoint.PostgresLogicalCheckpoint(lsn), nil
}

// PostCheckpoint records the server's WAL position again after the
// snapshot scan completes; advisory only, not used by incremental sync.
func (e *LogicalExtractor) PostCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	return e.PreCheckpoint(ctx)
}

// Snapshot performs a consistent-cut scan of every tracked table inside a
// REPEATABLE READ transaction on the (non-replication) pool connection.
func (e *LogicalExtractor) Snapshot(ctx context.Context) (<-chan types.Change, <-chan error) {
	tmp := &TriggerExtractor{cfg: e.cfg.Config, pool: e.pool, schema: e.schema}
	return tmp.Snapshot(ctx)
}

// Seek positions the extractor to start streaming immediately after the
// given LSN: StartReplication is given that LSN as its starting point.
func (e *LogicalExtractor) Seek(ctx context.Context, from checkpoint.Checkpoint) error {
	if from.Kind != checkpoint.KindPostgresLogical {
		return fmt.Errorf("%w: postgresql-logical extractor cannot seek to %s checkpoint", errs.ErrCheckpointInvalid, from.Kind)
	}
	lsn, err := pglogrepl.ParseLSN(from.LSN)
	if err != nil {
		return fmt.Errorf("%w: parse lsn %q: %v", errs.ErrCheckpointInvalid, from.LSN, err)
	}
	e.lastLSN = lsn
	e.confirmed = lsn
	e.clientXLogPos = lsn

	if err := pglogrepl.StartReplication(ctx, e.repl, e.cfg.Slot, lsn, pglogrepl.StartReplicationOptions{PluginArgs: wal2jsonPluginArgs}); err != nil {
		return fmt.Errorf("%w: start replication at %s: %v", errs.ErrResource, from.LSN, err)
	}
	return nil
}

// StreamChanges reads wal2json frames from the replication stream, peeking
// (not advancing the slot) until Advance is explicitly called once a batch
// is durably applied. Changes are emitted in LSN order.
func (e *LogicalExtractor) StreamChanges(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, e.cfg.bufferSize())
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		standbyTicker := time.NewTicker(10 * time.Second)
		defer standbyTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-standbyTicker.C:
				if err := pglogrepl.SendStandbyStatusUpdate(ctx, e.repl, pglogrepl.StandbyStatusUpdate{
					WALWritePosition: e.confirmed,
				}); err != nil {
					errCh <- fmt.Errorf("%w: send standby status: %v", errs.ErrTransientUpstream, err)
					return
				}
			default:
			}

			rcvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			msg, err := e.repl.ReceiveMessage(rcvCtx)
			cancel()
			if err != nil {
				if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				errCh <- fmt.Errorf("%w: receive replication message: %v", errs.ErrTransientUpstream, err)
				return
			}

			cd, ok := msg.(*pgconn.CopyData)
			if !ok {
				continue
			}
			if len(cd.Data) == 0 {
				continue
			}

			switch cd.Data[0] {
			case pglogrepl.PrimaryKeepaliveMessageByteID:
				ka, err := pglogrepl.ParsePrimaryKeepaliveMessage(cd.Data[1:])
				if err == nil && ka.ReplyRequested {
					_ = pglogrepl.SendStandbyStatusUpdate(ctx, e.repl, pglogrepl.StandbyStatusUpdate{WALWritePosition: e.confirmed})
				}

			case pglogrepl.XLogDataByteID:
				xld, err := pglogrepl.ParseXLogData(cd.Data[1:])
				if err != nil {
					errCh <- fmt.Errorf("%w: parse xlogdata: %v", errs.ErrProtocol, err)
					return
				}
				e.lastLSN = xld.WALStart + pglogrepl.LSN(len(xld.WALData))

				change, ok, err := parseWal2JSONFrame(xld.WALData, e.schema, e.tableSet, e.cfg.StrictSchema)
				if err != nil {
					errCh <- err
					return
				}
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errCh
}

// Advance confirms consumption of the slot up to lsn. The driver calls this
// only after every change up to lsn has been committed to the sink.
func (e *LogicalExtractor) Advance(lsn pglogrepl.LSN) {
	e.confirmed = lsn
}

// AdvanceCheckpoint implements source.Advancer: it parses cp's LSN and
// confirms slot consumption up to it. The driver calls this after a batch
// has been durably applied, never before.
func (e *LogicalExtractor) AdvanceCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.Kind != checkpoint.KindPostgresLogical {
		return fmt.Errorf("%w: postgresql-logical extractor cannot advance to %s checkpoint", errs.ErrCheckpointInvalid, cp.Kind)
	}
	lsn, err := pglogrepl.ParseLSN(cp.LSN)
	if err != nil {
		return fmt.Errorf("%w: parse lsn %q: %v", errs.ErrCheckpointInvalid, cp.LSN, err)
	}
	e.Advance(lsn)
	return nil
}

// CurrentCheckpoint reports the last LSN observed on the replication
// stream (not yet necessarily confirmed to the server).
func (e *LogicalExtractor) CurrentCheckpoint() checkpoint.Checkpoint {
	return checkpoint.PostgresLogicalCheckpoint(e.lastLSN.String())
}

// Cleanup closes the replication connection. The slot itself is left in
// place so a later incremental run can resume from it.
func (e *LogicalExtractor) Cleanup(ctx context.Context) error {
	if e.repl == nil {
		return nil
	}
	return e.repl.Close(ctx)
}
