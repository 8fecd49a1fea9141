package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareSequenceIDs(t *testing.T) {
	a := PostgresTriggerCheckpoint(10, time.Now())
	b := PostgresTriggerCheckpoint(20, time.Now())

	cmp, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Compare(b, a)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = Compare(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestCompareLSN(t *testing.T) {
	a := PostgresLogicalCheckpoint("0/1000")
	b := PostgresLogicalCheckpoint("0/2000")
	c := PostgresLogicalCheckpoint("1/0000")

	cmp, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Compare(b, c)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
}

func TestCompareInstants(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	cmp, err := Compare(Neo4jCheckpoint(earlier), Neo4jCheckpoint(later))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
}

func TestCompareLSNHexPairs(t *testing.T) {
	// spec.md §8 P6: compare("0/FF", "1/0") < 0, compare("0/200", "0/100") >
	// 0, compare(x, x) == 0 for all hex pairs.
	cmp, err := Compare(PostgresLogicalCheckpoint("0/FF"), PostgresLogicalCheckpoint("1/0"))
	require.NoError(t, err)
	assert.Less(t, cmp, 0)

	cmp, err = Compare(PostgresLogicalCheckpoint("0/200"), PostgresLogicalCheckpoint("0/100"))
	require.NoError(t, err)
	assert.Greater(t, cmp, 0)

	for _, x := range []string{"0/FF", "1/0", "0/200", "0/100", "ABCD/1234"} {
		cmp, err := Compare(PostgresLogicalCheckpoint(x), PostgresLogicalCheckpoint(x))
		require.NoError(t, err)
		assert.Equal(t, 0, cmp)
	}
}

func TestCompareMismatchedKinds(t *testing.T) {
	_, err := Compare(Neo4jCheckpoint(time.Now()), PostgresLogicalCheckpoint("0/1"))
	assert.Error(t, err)
}

func TestCompareMonotoneProperty(t *testing.T) {
	// P4: for any two checkpoints c1, c2 emitted earlier/later by the same
	// source, compare(c1, c2) < 0.
	seq := []Checkpoint{
		PostgresTriggerCheckpoint(1, time.Now()),
		PostgresTriggerCheckpoint(2, time.Now()),
		PostgresTriggerCheckpoint(3, time.Now()),
	}
	for i := 0; i < len(seq)-1; i++ {
		cmp, err := Compare(seq[i], seq[i+1])
		require.NoError(t, err)
		assert.Less(t, cmp, 0)
	}
}
