package postgresql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

func TestParseWal2JSONTimeEpochDate(t *testing.T) {
	tm, err := parseWal2JSONTime("epoch")
	require.NoError(t, err)
	require.Equal(t, "1970-01-01T00:00:00Z", tm.UTC().Format(time.RFC3339))
}

func TestParseWal2JSONTimeExplicitDate(t *testing.T) {
	tm, err := parseWal2JSONTime("1999-01-08")
	require.NoError(t, err)
	require.Equal(t, "1999-01-08T00:00:00Z", tm.UTC().Format(time.RFC3339))
}

func TestParseWal2JSONTimeTimestamptz(t *testing.T) {
	tm, err := parseWal2JSONTime("2026-03-01T12:30:00Z")
	require.NoError(t, err)
	require.Equal(t, 2026, tm.Year())
}

func TestParsePGIntervalNormalizesYearsAndMonths(t *testing.T) {
	d, err := parsePGInterval("1 year 2 mons 3 days 04:05:06")
	require.NoError(t, err)
	want := time.Duration(360*24)*time.Hour + time.Duration(2*30*24)*time.Hour + time.Duration(3*24)*time.Hour +
		4*time.Hour + 5*time.Minute + 6*time.Second
	require.Equal(t, want, d)
}

func TestParsePGIntervalClockOnly(t *testing.T) {
	d, err := parsePGInterval("01:02:03")
	require.NoError(t, err)
	require.Equal(t, time.Hour+2*time.Minute+3*time.Second, d)
}

func TestParseWal2JSONFrameInsert(t *testing.T) {
	schema := Schema{"users": {"id": types.UUIDType{}, "age": types.IntType{Width: 32}}}
	frame := []byte(`{
		"action": "I",
		"schema": "public",
		"table": "users",
		"columns": [
			{"name": "id", "type": "uuid", "value": "b6f3f7d0-0000-0000-0000-000000000001"},
			{"name": "age", "type": "integer", "value": 51}
		]
	}`)

	change, ok, err := parseWal2JSONFrame(frame, schema, nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.OpInsert, change.Op)
	require.Equal(t, "users", change.Row.Table)

	age := change.Row.Columns["age"]
	require.Equal(t, int64(51), age.Value)
}

func TestParseWal2JSONFrameFiltersUntrackedTable(t *testing.T) {
	frame := []byte(`{"action":"I","schema":"public","table":"untracked","columns":[]}`)
	_, ok, err := parseWal2JSONFrame(frame, Schema{}, map[string]bool{"users": true}, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseWal2JSONFrameInsertUsesPKSectionNotFirstColumn(t *testing.T) {
	// The frame declares "age" first and "id" second; the pk section still
	// names "id" as the key, so PrimaryKey must come from pk, not position 0.
	schema := Schema{"users": {"id": types.UUIDType{}, "age": types.IntType{Width: 32}}}
	frame := []byte(`{
		"action": "I",
		"schema": "public",
		"table": "users",
		"columns": [
			{"name": "age", "type": "integer", "value": 51},
			{"name": "id", "type": "uuid", "value": "b6f3f7d0-0000-0000-0000-000000000001"}
		],
		"pk": [{"name": "id", "type": "uuid", "value": "b6f3f7d0-0000-0000-0000-000000000001"}]
	}`)

	change, ok, err := parseWal2JSONFrame(frame, schema, nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"id"}, change.Row.PrimaryKey)
}

func TestParseWal2JSONFrameInsertCompositeKey(t *testing.T) {
	schema := Schema{"memberships": {"org_id": types.UUIDType{}, "user_id": types.UUIDType{}, "role": types.TextType{}}}
	frame := []byte(`{
		"action": "I",
		"schema": "public",
		"table": "memberships",
		"columns": [
			{"name": "org_id", "type": "uuid", "value": "00000000-0000-0000-0000-000000000001"},
			{"name": "user_id", "type": "uuid", "value": "00000000-0000-0000-0000-000000000002"},
			{"name": "role", "type": "text", "value": "admin"}
		],
		"pk": [
			{"name": "org_id", "type": "uuid", "value": "00000000-0000-0000-0000-000000000001"},
			{"name": "user_id", "type": "uuid", "value": "00000000-0000-0000-0000-000000000002"}
		]
	}`)

	change, ok, err := parseWal2JSONFrame(frame, schema, nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"org_id", "user_id"}, change.Row.PrimaryKey)
}

func TestParseWal2JSONFrameDelete(t *testing.T) {
	schema := Schema{"users": {"id": types.UUIDType{}}}
	frame := []byte(`{
		"action": "D",
		"schema": "public",
		"table": "users",
		"pk": [{"name": "id", "type": "uuid", "value": "b6f3f7d0-0000-0000-0000-000000000001"}]
	}`)
	change, ok, err := parseWal2JSONFrame(frame, schema, nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.OpDelete, change.Op)
	require.Equal(t, []string{"id"}, change.PrimaryKey)
}
