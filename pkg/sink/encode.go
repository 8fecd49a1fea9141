package sink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

// encodeContent renders a Row's columns as a JSON object literal, which
// both SDK generations' SQL grammar accepts as a CONTENT/CREATE payload
// (SurrealQL's object syntax is a superset of JSON).
func encodeContent(row types.Row) (string, error) {
	obj := make(map[string]any, len(row.Columns))
	for name, v := range row.Columns {
		wv, err := ToWireValue(v)
		if err != nil {
			return "", fmt.Errorf("column %q: %w", name, err)
		}
		obj[name] = wv
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToWireValue converts a TypedValue into the plain Go value the target's
// query layer expects on the wire (a JSON-marshalable value for both SDK
// generations). Conversion never performs decimal arithmetic; decimals are
// re-encoded as canonical strings so they round-trip exactly.
func ToWireValue(v types.TypedValue) (any, error) {
	if v.IsNull {
		return nil, nil
	}

	switch t := v.Type.(type) {
	case types.BoolType:
		return v.Value, nil
	case types.IntType, types.FloatType:
		return v.Value, nil
	case types.DecimalType:
		d, ok := v.Value.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("sink: decimal value has unexpected Go type %T", v.Value)
		}
		return d.String(), nil
	case types.TextType, types.CharType, types.VarcharType:
		return v.Value, nil
	case types.BytesType:
		b, ok := v.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("sink: bytes value has unexpected Go type %T", v.Value)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case types.UUIDType:
		id, ok := v.Value.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("sink: uuid value has unexpected Go type %T", v.Value)
		}
		return id.String(), nil
	case types.DateType:
		tm, err := asTime(v.Value)
		if err != nil {
			return nil, err
		}
		return tm.UTC().Format("2006-01-02") + "T00:00:00Z", nil
	case types.TimeType:
		tm, err := asTime(v.Value)
		if err != nil {
			return nil, err
		}
		return tm.UTC().Format("15:04:05.999999999"), nil
	case types.LocalDateTimeType, types.ZonedDateTimeType:
		tm, err := asTime(v.Value)
		if err != nil {
			return nil, err
		}
		return tm.UTC().Format(time.RFC3339Nano), nil
	case types.TimeWithOffsetType:
		tm, err := asTime(v.Value)
		if err != nil {
			return nil, err
		}
		return tm.Format(time.RFC3339Nano), nil
	case types.DurationType:
		d, ok := v.Value.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("sink: duration value has unexpected Go type %T", v.Value)
		}
		return d.String(), nil
	case types.JSONType, types.JSONBType, types.GeometryType:
		return v.Value, nil
	case types.EnumType:
		return v.Value, nil
	case types.SetType:
		return v.Value, nil
	case types.ArrayType:
		elems, ok := v.Value.([]types.TypedValue)
		if !ok {
			return nil, fmt.Errorf("sink: array value has unexpected Go type %T", v.Value)
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			wv, err := ToWireValue(e)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = wv
		}
		return out, nil
	case types.RecordType:
		id, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("sink: record value has unexpected Go type %T", v.Value)
		}
		return RecordID(t.Table, id), nil
	default:
		return nil, fmt.Errorf("sink: unhandled universal type %s", v.Type.String())
	}
}

func asTime(v any) (time.Time, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("sink: temporal value has unexpected Go type %T", v)
	}
	return tm, nil
}

// RecordID renders a table/id pair as the target's record-link literal,
// e.g. users:abc_123, or users:`abc-123` for an id that needs quoting.
func RecordID(table, id string) string {
	return fmt.Sprintf("%s:%s", table, escapeRecordKey(id))
}

// escapeRecordKey backtick-quotes an id containing characters the record
// link grammar doesn't accept bare (anything outside [A-Za-z0-9_]).
func escapeRecordKey(id string) string {
	plain := true
	for _, r := range id {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			plain = false
			break
		}
	}
	if plain && id != "" {
		return id
	}
	escaped := strings.ReplaceAll(id, "`", "\\`")
	return "`" + escaped + "`"
}

// PrimaryKeyString renders a TypedValue primary key (which may be a
// composite array) into the opaque string the sink uses as the record id.
// The sink never interprets this string beyond using it as a key.
func PrimaryKeyString(pk types.TypedValue) (string, error) {
	if pk.IsNull {
		return "", fmt.Errorf("sink: primary key is null")
	}
	if arr, ok := pk.Type.(types.ArrayType); ok {
		_ = arr
		elems, ok := pk.Value.([]types.TypedValue)
		if !ok {
			return "", fmt.Errorf("sink: composite primary key has unexpected Go type %T", pk.Value)
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			s, err := PrimaryKeyString(e)
			if err != nil {
				return "", fmt.Errorf("composite key element %d: %w", i, err)
			}
			parts[i] = s
		}
		return strings.Join(parts, "-"), nil
	}

	wire, err := ToWireValue(pk)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", wire), nil
}
