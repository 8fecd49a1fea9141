package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// fakeExtractor is an in-memory FullSyncExtractor/IncrementalExtractor used
// to test the driver's algorithm independent of any real source.
type fakeExtractor struct {
	mu sync.Mutex

	rows       []types.Change // snapshot rows
	incoming   []types.Change // incremental changes, delivered in order
	cursor     int
	failAt     int // index into incoming at which StreamChanges reports a fatal error, -1 disables
	current    checkpoint.Checkpoint
	cleanedUp  bool
	seekTo     checkpoint.Checkpoint
	advanceLog []checkpoint.Checkpoint
}

func (f *fakeExtractor) Initialize(ctx context.Context) error { return nil }

func (f *fakeExtractor) StreamChanges(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, 100)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		f.mu.Lock()
		baseCursor := f.cursor
		remaining := f.incoming[baseCursor:]
		f.mu.Unlock()
		for i, ch := range remaining {
			if f.failAt >= 0 && baseCursor+i == f.failAt {
				errCh <- assert.AnError
				return
			}
			select {
			case out <- ch:
				f.mu.Lock()
				f.cursor++
				f.current = checkpoint.PostgresTriggerCheckpoint(int64(f.cursor), time.Now())
				f.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errCh
}

func (f *fakeExtractor) CurrentCheckpoint() checkpoint.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeExtractor) Cleanup(ctx context.Context) error {
	f.cleanedUp = true
	return nil
}

func (f *fakeExtractor) PreCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	return checkpoint.PostgresTriggerCheckpoint(0, time.Now()), nil
}

func (f *fakeExtractor) Snapshot(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, len(f.rows))
	errCh := make(chan error, 1)
	for _, r := range f.rows {
		out <- r
	}
	close(out)
	close(errCh)
	return out, errCh
}

func (f *fakeExtractor) PostCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	return checkpoint.PostgresTriggerCheckpoint(int64(len(f.rows)), time.Now()), nil
}

func (f *fakeExtractor) Seek(ctx context.Context, from checkpoint.Checkpoint) error {
	f.seekTo = from
	return nil
}

// fakeSink records every write/delete it's given; idempotent by
// construction since it's keyed by primary key string.
type fakeSink struct {
	mu      sync.Mutex
	written map[string]types.Row
	deleted map[string]bool
	writes  int // total WriteRecord calls, including duplicates
}

func newFakeSink() *fakeSink {
	return &fakeSink{written: make(map[string]types.Row), deleted: make(map[string]bool)}
}

func (s *fakeSink) WriteRecord(ctx context.Context, row types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, _ := sinkKey(row)
	s.written[key] = row
	delete(s.deleted, key)
	s.writes++
	return nil
}

func (s *fakeSink) DeleteRecord(ctx context.Context, table string, primaryKey types.TypedValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := table + ":" + primaryKey.Value.(string)
	delete(s.written, key)
	s.deleted[key] = true
	return nil
}

func (s *fakeSink) Flush(ctx context.Context) error { return nil }
func (s *fakeSink) Close() error                    { return nil }

// failingSink rejects every write, to make a snapshot apply fail.
type failingSink struct{ *fakeSink }

func (failingSink) WriteRecord(ctx context.Context, row types.Row) error { return assert.AnError }

func sinkKey(row types.Row) (string, error) {
	pk := row.PrimaryKeyValue()
	return row.Table + ":" + pk.Value.(string), nil
}

func testRow(id string) types.Row {
	return types.Row{
		Table:      "users",
		PrimaryKey: []string{"id"},
		Columns: map[string]types.TypedValue{
			"id":   types.Text(id),
			"name": types.Text("user-" + id),
		},
	}
}

func TestRunFullSyncEmitsBracketCheckpointsAndWritesAllRows(t *testing.T) {
	ext := &fakeExtractor{rows: []types.Change{
		types.Insert(testRow("1")),
		types.Insert(testRow("2")),
		types.Insert(testRow("3")),
	}}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = RunFullSync(context.Background(), ext, s, store, Options{SourceName: "test", BatchSize: 2})
	require.NoError(t, err)

	assert.Len(t, s.written, 3)
	assert.True(t, ext.cleanedUp)

	_, err = store.ReadFirst(context.Background(), checkpoint.FullSyncStart)
	require.NoError(t, err)
	_, err = store.ReadFirst(context.Background(), checkpoint.FullSyncEnd)
	require.NoError(t, err)
}

// TestRunFullSyncEmptySnapshot exercises the boundary case where an empty
// snapshot still emits both checkpoints and writes zero rows.
func TestRunFullSyncEmptySnapshot(t *testing.T) {
	ext := &fakeExtractor{}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = RunFullSync(context.Background(), ext, s, store, Options{SourceName: "test"})
	require.NoError(t, err)

	assert.Empty(t, s.written)
	_, err = store.ReadFirst(context.Background(), checkpoint.FullSyncStart)
	require.NoError(t, err)
	_, err = store.ReadFirst(context.Background(), checkpoint.FullSyncEnd)
	require.NoError(t, err)
}

// TestRunFullSyncFailureAfterStartIsResumable is property P5's failure
// half: a snapshot that fails partway still leaves FullSyncStart recorded,
// so the operator can resume with incremental sync instead of restarting.
func TestRunFullSyncFailureAfterStartIsResumable(t *testing.T) {
	ext := &fakeExtractor{rows: []types.Change{types.Insert(testRow("1"))}}
	// Force the snapshot to fail partway with a sink that rejects every write.
	s := failingSink{newFakeSink()}
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = RunFullSync(context.Background(), ext, s, store, Options{SourceName: "test"})
	var failed *ErrFullSyncFailed
	require.ErrorAs(t, err, &failed)
	assert.True(t, failed.StartRecorded)

	_, err = store.ReadFirst(context.Background(), checkpoint.FullSyncStart)
	require.NoError(t, err, "FullSyncStart must be durable even if later steps fail")
}

// TestRunIncrementalAppliesUntilEOS checks that a single incremental run
// seeks to From, applies every change until the extractor reaches
// end-of-stream, and that an update of an already-inserted key converges to
// one row (idempotent upsert).
func TestRunIncrementalAppliesUntilEOS(t *testing.T) {
	ext := &fakeExtractor{
		failAt: -1,
		incoming: []types.Change{
			types.Insert(testRow("1")),
			types.Insert(testRow("2")),
			types.Update(testRow("1")),
		},
	}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	opts := IncrementalOptions{
		Options:  Options{SourceName: "test", BatchSize: 10},
		From:     checkpoint.PostgresTriggerCheckpoint(0, time.Now()),
		Deadline: time.Now().Add(time.Minute),
	}
	err = RunIncremental(context.Background(), ext, s, store, opts)
	require.NoError(t, err)

	assert.Len(t, s.written, 2, "duplicate insert+update on id=1 converges to one row")
	assert.Equal(t, ext.seekTo.SequenceID, opts.From.SequenceID)
}

// TestRunIncrementalReplayIsIdempotent directly exercises P3: re-running the
// exact same change sequence against the sink a second time is a no-op on
// row state.
func TestRunIncrementalReplayIsIdempotent(t *testing.T) {
	changes := []types.Change{
		types.Insert(testRow("1")),
		types.Insert(testRow("2")),
	}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ext := &fakeExtractor{incoming: changes, failAt: -1}
		opts := IncrementalOptions{
			Options:  Options{SourceName: "test", BatchSize: 10},
			From:     checkpoint.PostgresTriggerCheckpoint(0, time.Now()),
			Deadline: time.Now().Add(time.Minute),
		}
		require.NoError(t, RunIncremental(context.Background(), ext, s, store, opts))
	}

	assert.Len(t, s.written, 2)
}

// TestRunIncrementalStopsAtToCheckpoint exercises the to_checkpoint exit
// condition of §4.G.
func TestRunIncrementalStopsAtToCheckpoint(t *testing.T) {
	ext := &fakeExtractor{
		incoming: []types.Change{
			types.Insert(testRow("1")),
			types.Insert(testRow("2")),
			types.Insert(testRow("3")),
		},
		failAt: -1,
	}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	opts := IncrementalOptions{
		Options:  Options{SourceName: "test", BatchSize: 1},
		From:     checkpoint.PostgresTriggerCheckpoint(0, time.Now()),
		To:       checkpoint.PostgresTriggerCheckpoint(2, time.Now()),
		Deadline: time.Now().Add(time.Minute),
	}
	err = RunIncremental(context.Background(), ext, s, store, opts)
	require.NoError(t, err)

	assert.Len(t, s.written, 2, "stops once the second change's checkpoint reaches To")
}

func TestRunIncrementalUpstreamErrorIsSurfaced(t *testing.T) {
	ext := &fakeExtractor{
		incoming: []types.Change{
			types.Insert(testRow("1")),
			types.Insert(testRow("2")),
		},
		failAt: 1,
	}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	opts := IncrementalOptions{
		Options:  Options{SourceName: "test", BatchSize: 10},
		From:     checkpoint.PostgresTriggerCheckpoint(0, time.Now()),
		Deadline: time.Now().Add(time.Minute),
	}
	err = RunIncremental(context.Background(), ext, s, store, opts)
	require.Error(t, err)
}

// fakeTargetStore is an in-memory pgstate.TargetStore, one record.
type fakeTargetStore struct {
	mu  sync.Mutex
	rec pgstate.Record
	has bool
}

func (f *fakeTargetStore) GetStateRecord(ctx context.Context, key string) (pgstate.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec, f.has, nil
}

func (f *fakeTargetStore) PutStateRecord(ctx context.Context, key string, rec pgstate.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec = rec
	f.has = true
	return nil
}

// TestRunFullSyncTransitionsPgStateToInitial exercises §4.I wired into
// RunFullSync: once FullSyncStart is durable, the PG logical state record
// moves Pending -> Initial(pre_lsn), using the exact LSN captured as the
// pre-checkpoint.
func TestRunFullSyncTransitionsPgStateToInitial(t *testing.T) {
	ext := &fakeExtractor{rows: []types.Change{types.Insert(testRow("1"))}}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	target := &fakeTargetStore{}
	id := pgstate.StateID{Host: "db", Schema: "public", Slot: "surreal_sync"}

	opts := Options{
		SourceName: "postgresql-logical",
		PGState:    pgstate.New(target),
		PGStateID:  id,
	}
	err = RunFullSync(context.Background(), &lsnExtractor{fakeExtractor: ext, lsn: "0/100"}, s, store, opts)
	require.NoError(t, err)

	state, ok, err := target.GetStateRecord(context.Background(), id.RecordKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pgstate.PhaseInitial, state.State.Phase)
	assert.Equal(t, "0/100", state.State.PreLSN)
}

// lsnExtractor wraps fakeExtractor to report a Postgres_Logical-kind
// PreCheckpoint, since fakeExtractor itself always reports a
// Postgres_Trigger checkpoint.
type lsnExtractor struct {
	*fakeExtractor
	lsn string
}

func (e *lsnExtractor) PreCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	return checkpoint.PostgresLogicalCheckpoint(e.lsn), nil
}

// TestRunIncrementalTransitionsPgStateToIncremental exercises the second
// half of §4.I: RunIncremental moves the state record Initial ->
// Incremental before its batch loop starts.
func TestRunIncrementalTransitionsPgStateToIncremental(t *testing.T) {
	ext := &fakeExtractor{incoming: []types.Change{types.Insert(testRow("1"))}, failAt: -1}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	target := &fakeTargetStore{}
	id := pgstate.StateID{Host: "db", Schema: "public", Slot: "surreal_sync"}
	require.NoError(t, target.PutStateRecord(context.Background(), id.RecordKey(), pgstate.Record{ID: id, State: pgstate.Initial("0/100")}))

	opts := IncrementalOptions{
		Options: Options{
			SourceName: "postgresql-logical",
			BatchSize:  10,
			PGState:    pgstate.New(target),
			PGStateID:  id,
		},
		From:     checkpoint.PostgresLogicalCheckpoint("0/100"),
		Deadline: time.Now().Add(time.Minute),
	}
	err = RunIncremental(context.Background(), ext, s, store, opts)
	require.NoError(t, err)

	state, ok, err := target.GetStateRecord(context.Background(), id.RecordKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pgstate.PhaseIncremental, state.State.Phase)
}

// TestRunIncrementalSkipsPgStateTransitionWhenAlreadyIncremental covers the
// restart case: a second incremental run against a record already in
// Incremental must not attempt Incremental -> Incremental, which
// validateTransition doesn't accept.
func TestRunIncrementalSkipsPgStateTransitionWhenAlreadyIncremental(t *testing.T) {
	ext := &fakeExtractor{incoming: []types.Change{types.Insert(testRow("1"))}, failAt: -1}
	s := newFakeSink()
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	target := &fakeTargetStore{}
	id := pgstate.StateID{Host: "db", Schema: "public", Slot: "surreal_sync"}
	require.NoError(t, target.PutStateRecord(context.Background(), id.RecordKey(), pgstate.Record{ID: id, State: pgstate.Incremental()}))

	opts := IncrementalOptions{
		Options: Options{
			SourceName: "postgresql-logical",
			BatchSize:  10,
			PGState:    pgstate.New(target),
			PGStateID:  id,
		},
		From:     checkpoint.PostgresLogicalCheckpoint("0/100"),
		Deadline: time.Now().Add(time.Minute),
	}
	err = RunIncremental(context.Background(), ext, s, store, opts)
	require.NoError(t, err)
}
