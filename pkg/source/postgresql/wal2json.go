package postgresql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// wal2jsonFrame is the shape of a format-version=2 wal2json change frame
// (one row mutation). include-transaction is disabled in the slot options
// (wal2jsonPluginArgs), so no Begin/Commit frames are requested;
// parseWal2JSONFrame rejects any action other than insert, update or
// delete as a protocol error.
type wal2jsonFrame struct {
	Action string            `json:"action"`
	Schema string            `json:"schema"`
	Table  string            `json:"table"`
	Columns []wal2jsonColumn `json:"columns"`
	Identity []wal2jsonColumn `json:"identity"` // "old keys" on update/delete (include-pk)
	PK      []wal2jsonColumn `json:"pk"`
}

type wal2jsonColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// parseWal2JSONFrame parses one wal2json v2 change frame into a Change,
// decoding each column's wire value through the collected schema. tables
// is the allow-list filter: a frame for an untracked table yields a zero
// Change and false.
func parseWal2JSONFrame(data []byte, schema Schema, tables map[string]bool, strict bool) (types.Change, bool, error) {
	var frame wal2jsonFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.Change{}, false, fmt.Errorf("%w: unmarshal wal2json frame: %v", errs.ErrProtocol, err)
	}

	if len(tables) > 0 && !tables[frame.Table] {
		return types.Change{}, false, nil
	}

	tableSchema := schema[frame.Table]

	switch strings.ToUpper(frame.Action) {
	case "I", "INSERT":
		pkCols := frame.PK
		if len(pkCols) == 0 {
			pkCols = frame.Identity
		}
		row, err := wal2jsonColumnsToRow(frame.Table, frame.Columns, pkCols, tableSchema, strict)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Insert(row), true, nil

	case "U", "UPDATE":
		pkCols := frame.PK
		if len(pkCols) == 0 {
			pkCols = frame.Identity
		}
		row, err := wal2jsonColumnsToRow(frame.Table, frame.Columns, pkCols, tableSchema, strict)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Update(row), true, nil

	case "D", "DELETE":
		keyCols := frame.PK
		if len(keyCols) == 0 {
			keyCols = frame.Identity
		}
		row, err := wal2jsonColumnsToRow(frame.Table, keyCols, keyCols, tableSchema, strict)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Delete(frame.Table, row.PrimaryKey, row.Columns), true, nil

	default:
		return types.Change{}, false, fmt.Errorf("%w: unknown wal2json action %q", errs.ErrProtocol, frame.Action)
	}
}

// wal2jsonColumnsToRow builds Columns from cols (the frame's full column
// list, or just the key columns for a delete) and PrimaryKey from pkCols
// (the wal2json "pk" section's column names, per spec §4.C.1) — the two
// lists are independent so a primary key that isn't a frame's first
// declared column, or a composite key, still lands on the right record id.
func wal2jsonColumnsToRow(table string, cols []wal2jsonColumn, pkCols []wal2jsonColumn, tableSchema map[string]types.UniversalType, strict bool) (types.Row, error) {
	columns := make(map[string]types.TypedValue, len(cols))
	for _, c := range cols {
		ut := tableSchema[c.Name]
		if ut == nil {
			ut = wal2jsonTypeToUniversal(c.Type)
		}
		tv, err := wal2jsonValueToTyped(ut, c.Value)
		if err != nil {
			if strict {
				return types.Row{}, fmt.Errorf("%w: column %s.%s: %v", errs.ErrSchemaMismatch, table, c.Name, err)
			}
			tv = types.Text(fmt.Sprintf("%v", c.Value))
		}
		columns[c.Name] = tv
	}
	pk := make([]string, len(pkCols))
	for i, c := range pkCols {
		pk[i] = c.Name
	}
	return types.Row{Table: table, PrimaryKey: pk, Columns: columns}, nil
}

// wal2jsonTypeToUniversal is a best-effort fallback for columns wal2json
// reports without a schema hit (a dropped column, or a table not covered by
// CollectSchema). It degrades unknown names to Text.
func wal2jsonTypeToUniversal(wireType string) types.UniversalType {
	t := strings.ToLower(wireType)
	switch {
	case t == "boolean":
		return types.BoolType{}
	case t == "smallint":
		return types.IntType{Width: 16}
	case t == "integer":
		return types.IntType{Width: 32}
	case t == "bigint":
		return types.IntType{Width: 64}
	case t == "real":
		return types.FloatType{Width: 32}
	case t == "double precision":
		return types.FloatType{Width: 64}
	case strings.HasPrefix(t, "numeric"):
		return types.DecimalType{Precision: 38, Scale: 10}
	case t == "uuid":
		return types.UUIDType{}
	case t == "date":
		return types.DateType{}
	case t == "timestamp with time zone":
		return types.ZonedDateTimeType{}
	case t == "timestamp without time zone":
		return types.LocalDateTimeType{}
	case t == "time with time zone":
		return types.TimeWithOffsetType{}
	case t == "time without time zone":
		return types.TimeType{}
	case t == "json" || t == "jsonb":
		return types.JSONBType{}
	case t == "bytea":
		return types.BytesType{}
	default:
		return types.TextType{}
	}
}

func wal2jsonValueToTyped(ut types.UniversalType, v any) (types.TypedValue, error) {
	if v == nil {
		return types.Null(ut), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return types.TypedValue{}, err
	}
	return jsonToTypedValue(ut, raw)
}

// parseWal2JSONTime parses the RFC3339-equivalent rendering wal2json uses
// for date/time/timestamp[tz] columns, including the epoch-date boundary
// case (DATE 'epoch' -> 1970-01-01T00:00:00+00:00).
func parseWal2JSONTime(s string) (time.Time, error) {
	if s == "epoch" {
		return time.Unix(0, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999-07", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("15:04:05.999999999-07", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized postgresql temporal wire format %q", errs.ErrProtocol, s)
}

// parsePGInterval parses a PostgreSQL interval's text output
// ("1 year 2 mons 3 days 04:05:06") into a Duration, normalizing calendar
// components (years, months) to a fixed 30-day month / 360-day year.
func parsePGInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var total time.Duration
	fields := strings.Fields(s)
	i := 0
	for i < len(fields) {
		f := fields[i]

		if strings.Contains(f, ":") {
			d, err := parseClockDuration(f)
			if err != nil {
				return 0, fmt.Errorf("%w: invalid interval clock component %q: %v", errs.ErrProtocol, f, err)
			}
			total += d
			i++
			continue
		}

		if i+1 >= len(fields) {
			return 0, fmt.Errorf("%w: malformed interval %q", errs.ErrProtocol, s)
		}
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid interval quantity %q: %v", errs.ErrProtocol, f, err)
		}
		unit := strings.TrimSuffix(strings.ToLower(fields[i+1]), "s")
		switch unit {
		case "year":
			total += time.Duration(n*360*24) * time.Hour
		case "mon":
			total += time.Duration(n*30*24) * time.Hour
		case "day":
			total += time.Duration(n*24) * time.Hour
		default:
			return 0, fmt.Errorf("%w: unknown interval unit %q", errs.ErrProtocol, unit)
		}
		i += 2
	}
	return total, nil
}

func parseClockDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS[.ffffff]")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(secs*float64(time.Second))
	if neg {
		d = -d
	}
	return d, nil
}
