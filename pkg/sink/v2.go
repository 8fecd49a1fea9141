package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/surrealdb/surreal-sync/pkg/pgstate"
)

// V2 talks to a target running the v2-generation SQL HTTP endpoint. It has
// no UPSERT statement, so each write is rendered as an UPDATE ... CONTENT,
// which v2 defines as create-or-replace-by-id — the same idempotent upsert
// semantics this package promises, just spelled differently than v3.
type V2 struct {
	base
}

// NewV2 creates a sink bound to a v2 target at opts.Endpoint.
func NewV2(opts Options) *V2 {
	s := &V2{base: newBase(opts)}
	s.baseSink = newBaseSink(VersionV2, opts.batchSize(), s.flushBatch)
	return s
}

func (s *V2) flushBatch(ctx context.Context, table string, ops []op) error {
	var sb strings.Builder
	for _, o := range ops {
		if o.delete {
			key, err := PrimaryKeyString(o.primaryKey)
			if err != nil {
				return fmt.Errorf("encode delete key: %w", err)
			}
			fmt.Fprintf(&sb, "DELETE %s;\n", RecordID(table, key))
			continue
		}
		key, err := PrimaryKeyString(o.row.PrimaryKeyValue())
		if err != nil {
			return fmt.Errorf("encode primary key: %w", err)
		}
		content, err := encodeContent(o.row)
		if err != nil {
			return fmt.Errorf("encode row content: %w", err)
		}
		fmt.Fprintf(&sb, "UPDATE %s CONTENT %s;\n", RecordID(table, key), content)
	}
	return s.execute(ctx, sb.String())
}

// base holds the HTTP plumbing shared by V2 and V3: both speak the same
// `/sql` statement endpoint and the same basic-auth/namespace/database
// header scheme, differing only in statement dialect.
type base struct {
	*baseSink
	opts   Options
	client *http.Client
}

func newBase(opts Options) base {
	return base{
		opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *base) execute(ctx context.Context, statements string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.opts.Endpoint, "/")+"/sql", bytes.NewBufferString(statements))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("NS", b.opts.Namespace)
	req.Header.Set("DB", b.opts.Database)
	if b.opts.Username != "" {
		req.SetBasicAuth(b.opts.Username, b.opts.Password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink: target returned %d: %s", resp.StatusCode, string(body))
	}

	var results []struct {
		Status string `json:"status"`
		Result any    `json:"result"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return fmt.Errorf("sink: decode response: %w", err)
	}
	for _, r := range results {
		if r.Status != "OK" {
			return fmt.Errorf("sink: statement failed: %v", r.Result)
		}
	}
	return nil
}

func (b *base) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// stateTable is the fixed table pgstate.Store records PG logical-decoding
// state in, sharing this sink's target connection rather than opening a
// second one just to persist three phases of state.
const stateTable = "surreal_sync_pg_state"

// GetStateRecord and PutStateRecord satisfy pgstate.TargetStore, letting the
// PG logical-decoding state machine (pkg/pgstate) persist through the same
// connection this sink writes replicated rows through.
func (b *base) GetStateRecord(ctx context.Context, key string) (pgstate.Record, bool, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s;", RecordID(stateTable, key))
	results, err := b.query(ctx, stmt)
	if err != nil {
		return pgstate.Record{}, false, err
	}
	if len(results) == 0 {
		return pgstate.Record{}, false, nil
	}
	rec, err := decodeStateRecord(results[0])
	if err != nil {
		return pgstate.Record{}, false, err
	}
	return rec, true, nil
}

func (b *base) PutStateRecord(ctx context.Context, key string, rec pgstate.Record) error {
	content, err := encodeStateRecord(rec)
	if err != nil {
		return fmt.Errorf("sink: encode state record: %w", err)
	}
	stmt := fmt.Sprintf("UPDATE %s CONTENT %s;\n", RecordID(stateTable, key), content)
	return b.execute(ctx, stmt)
}

// stateRecordWire is the JSON shape a pgstate.Record is persisted as.
type stateRecordWire struct {
	Host      string    `json:"host"`
	Schema    string    `json:"schema"`
	Slot      string    `json:"slot"`
	Phase     string    `json:"phase"`
	PreLSN    string    `json:"pre_lsn,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeStateRecord(rec pgstate.Record) (string, error) {
	wire := stateRecordWire{
		Host:      rec.ID.Host,
		Schema:    rec.ID.Schema,
		Slot:      rec.ID.Slot,
		Phase:     string(rec.State.Phase),
		PreLSN:    rec.State.PreLSN,
		UpdatedAt: rec.UpdatedAt,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStateRecord(row map[string]any) (pgstate.Record, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return pgstate.Record{}, err
	}
	var wire stateRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return pgstate.Record{}, fmt.Errorf("sink: decode state record: %w", err)
	}
	return pgstate.Record{
		ID:        pgstate.StateID{Host: wire.Host, Schema: wire.Schema, Slot: wire.Slot},
		State:     pgstate.State{Phase: pgstate.Phase(wire.Phase), PreLSN: wire.PreLSN},
		UpdatedAt: wire.UpdatedAt,
	}, nil
}

// query runs statements expected to return rows and returns the first
// statement's decoded result set as plain maps.
func (b *base) query(ctx context.Context, statements string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.opts.Endpoint, "/")+"/sql", bytes.NewBufferString(statements))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("NS", b.opts.Namespace)
	req.Header.Set("DB", b.opts.Database)
	if b.opts.Username != "" {
		req.SetBasicAuth(b.opts.Username, b.opts.Password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sink: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sink: target returned %d: %s", resp.StatusCode, string(body))
	}

	var results []struct {
		Status string           `json:"status"`
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("sink: decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if results[0].Status != "OK" {
		return nil, fmt.Errorf("sink: statement failed: %v", results[0].Result)
	}
	return results[0].Result, nil
}
