package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreEmitAndReadFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	cp := PostgresTriggerCheckpoint(5, time.Now())

	require.NoError(t, store.Emit(ctx, FullSyncStart, cp))

	got, err := store.ReadFirst(ctx, FullSyncStart)
	require.NoError(t, err)
	assert.Equal(t, cp.SequenceID, got.SequenceID)
}

func TestFileStoreReadFirstMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.ReadFirst(context.Background(), FullSyncEnd)
	var notFound *ErrNoCheckpoint
	assert.ErrorAs(t, err, &notFound)
}

func TestFileStoreListOrdersByTimestamp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Emit(ctx, FullSyncStart, PostgresTriggerCheckpoint(1, time.Now())))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.Emit(ctx, FullSyncEnd, PostgresTriggerCheckpoint(2, time.Now())))

	files, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, FullSyncStart, files[0].Phase)
	assert.Equal(t, FullSyncEnd, files[1].Phase)
}

func TestBoltStoreEmitAndReadFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	cp := MySQLTriggerCheckpoint(9, time.Now())

	require.NoError(t, store.Emit(ctx, FullSyncStart, cp))

	got, err := store.ReadFirst(ctx, FullSyncStart)
	require.NoError(t, err)
	assert.Equal(t, cp.SequenceID, got.SequenceID)
}
