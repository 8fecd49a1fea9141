package neo4j

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

func TestValueToTypedPrimitives(t *testing.T) {
	tv, err := valueToTyped(int64(42))
	require.NoError(t, err)
	require.Equal(t, int64(42), tv.Value)

	tv, err = valueToTyped("hello")
	require.NoError(t, err)
	require.Equal(t, types.TextType{}, tv.Type)
}

func TestValueToTypedMapBecomesJSON(t *testing.T) {
	tv, err := valueToTyped(map[string]any{"a": int64(1)})
	require.NoError(t, err)
	require.Equal(t, types.KindJSON, tv.Type.Kind())
}

func TestNodeToRowUsesElementIDColumn(t *testing.T) {
	row, err := nodeToRow("Person", "4:abc:1", map[string]any{"name": "ada"})
	require.NoError(t, err)
	require.Equal(t, "Person", row.Table)
	require.Equal(t, []string{"id"}, row.PrimaryKey)
	require.Equal(t, "4:abc:1", row.Columns["id"].Value)
}

func TestNeo4jDurationNormalizesMonthsAndDays(t *testing.T) {
	d := neo4jDurationToGo(dbtype.Duration{Months: 1, Days: 3, Seconds: 10, Nanos: 0})
	want := time.Duration(30+3)*24*time.Hour + 10*time.Second
	require.Equal(t, want, d)
}
