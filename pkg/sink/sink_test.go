package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

func okStatementsHandler(t *testing.T, capture *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*capture = string(body)

		n := strings.Count(*capture, ";")
		results := make([]map[string]any, 0, n)
		for i := 0; i < n; i++ {
			results = append(results, map[string]any{"status": "OK", "result": nil})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(results))
	}
}

func testRow(t *testing.T) types.Row {
	t.Helper()
	return types.Row{
		Table:      "users",
		PrimaryKey: []string{"id"},
		Columns: map[string]types.TypedValue{
			"id":    types.Text("u1"),
			"email": types.Text("user_0@test.com"),
			"age":   mustInt(t, 51),
		},
	}
}

func mustInt(t *testing.T, v int64) types.TypedValue {
	t.Helper()
	tv, err := types.Int(32, v)
	require.NoError(t, err)
	return tv
}

func TestV2WriteRecordBatchesAndFlushes(t *testing.T) {
	var captured string
	server := httptest.NewServer(okStatementsHandler(t, &captured))
	defer server.Close()

	s := NewV2(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 1})
	defer s.Close()

	err := s.WriteRecord(context.Background(), testRow(t))
	require.NoError(t, err)

	require.Contains(t, captured, "UPDATE users:u1 CONTENT")
	require.Contains(t, captured, `"email":"user_0@test.com"`)
}

func TestV3WriteRecordUsesUpsert(t *testing.T) {
	var captured string
	server := httptest.NewServer(okStatementsHandler(t, &captured))
	defer server.Close()

	s := NewV3(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 1})
	defer s.Close()

	err := s.WriteRecord(context.Background(), testRow(t))
	require.NoError(t, err)
	require.Contains(t, captured, "UPSERT users:u1 CONTENT")
}

func TestDeleteRecordRendersDeleteStatement(t *testing.T) {
	var captured string
	server := httptest.NewServer(okStatementsHandler(t, &captured))
	defer server.Close()

	s := NewV2(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 1})
	defer s.Close()

	err := s.DeleteRecord(context.Background(), "users", types.Text("u1"))
	require.NoError(t, err)
	require.Contains(t, captured, "DELETE users:u1;")
}

func TestFlushAppliesBufferedRowsBelowBatchSize(t *testing.T) {
	var captured string
	server := httptest.NewServer(okStatementsHandler(t, &captured))
	defer server.Close()

	s := NewV2(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 500})
	defer s.Close()

	require.NoError(t, s.WriteRecord(context.Background(), testRow(t)))
	require.Empty(t, captured, "batch below size should not flush yet")

	require.NoError(t, s.Flush(context.Background()))
	require.Contains(t, captured, "UPDATE users:u1 CONTENT")
}

func TestWriteFailurePropagatesTableAndKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewV2(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 1})
	defer s.Close()

	err := s.WriteRecord(context.Background(), testRow(t))
	require.Error(t, err)

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	require.Equal(t, "users", werr.Table)
	require.Equal(t, "u1", werr.PrimaryKey)
}

func testCompositeRow(t *testing.T) types.Row {
	t.Helper()
	return types.Row{
		Table:      "memberships",
		PrimaryKey: []string{"org_id", "user_id"},
		Columns: map[string]types.TypedValue{
			"org_id":  types.Text("acct1"),
			"user_id": types.Text("2026"),
			"role":    types.Text("admin"),
		},
	}
}

func TestCompositeKeyWriteAndDeleteTargetTheSameRecordID(t *testing.T) {
	var captured string
	server := httptest.NewServer(okStatementsHandler(t, &captured))
	defer server.Close()

	s := NewV3(Options{Endpoint: server.URL, Namespace: "test", Database: "test", BatchSize: 1})
	defer s.Close()

	row := testCompositeRow(t)
	require.NoError(t, s.WriteRecord(context.Background(), row))
	require.Contains(t, captured, "UPSERT memberships:`acct1-2026` CONTENT")

	require.NoError(t, s.DeleteRecord(context.Background(), row.Table, row.PrimaryKeyValue()))
	require.Contains(t, captured, "DELETE memberships:`acct1-2026`;")
}

func TestPrimaryKeyStringForCompositeKey(t *testing.T) {
	composite := types.Array(types.TextType{}, []types.TypedValue{types.Text("acct1"), types.Text("2026")})
	s, err := PrimaryKeyString(composite)
	require.NoError(t, err)
	require.Equal(t, "acct1-2026", s)
}
