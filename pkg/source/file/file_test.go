package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveSingleLocalFile(t *testing.T) {
	sources, err := Resolve(context.Background(), LocalSource("/tmp/data.csv"))
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "/tmp/data.csv", sources[0].Local)
}

func TestResolveLocalDirectoryExpandsSortedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644))

	sources, err := Resolve(context.Background(), LocalSource(dir+"/"))
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, filepath.Join(dir, "a.csv"), sources[0].Local)
	require.Equal(t, filepath.Join(dir, "b.csv"), sources[1].Local)
}

func TestCSVExtractorReadsHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,ada\n2,grace\n"), 0o644))

	ex := NewCSVExtractor(LocalSource(path), CSVConfig{Table: "users", HasHeader: true})
	ctx := context.Background()
	require.NoError(t, ex.Initialize(ctx))

	out, errCh := ex.StreamChanges(ctx)
	var rows int
	for range out {
		rows++
	}
	require.NoError(t, <-errCh)
	require.Equal(t, 2, rows)
}

func TestJSONLExtractorAppliesReferenceRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.jsonl")
	line := `{"id": "1", "customer": {"type": "customer_ref", "customer_id": "42"}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	ex := NewJSONLExtractor(LocalSource(path), JSONLConfig{
		Table:   "orders",
		IDField: "id",
		ReferenceRules: []ReferenceRule{
			{Field: "customer", Tag: "customer_ref", IDField: "customer_id", Table: "customers"},
		},
	})
	ctx := context.Background()
	require.NoError(t, ex.Initialize(ctx))

	out, errCh := ex.StreamChanges(ctx)
	var got bool
	for change := range out {
		got = true
		require.Equal(t, "42", change.Row.Columns["customer"].Value)
	}
	require.NoError(t, <-errCh)
	require.True(t, got)
}
