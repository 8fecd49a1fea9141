package postgresql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

// wireToTypedValue converts a value pgx has already decoded from the wire
// protocol (via Rows.Values) into a TypedValue of the given UniversalType.
// This is the §4.A "(source_column_type, source_wire_value) -> TypedValue"
// conversion for the direct-query path (full-sync snapshot scan).
func wireToTypedValue(ut types.UniversalType, v any) (types.TypedValue, error) {
	if v == nil {
		return types.Null(ut), nil
	}

	switch t := ut.(type) {
	case types.BoolType:
		b, ok := v.(bool)
		if !ok {
			return types.TypedValue{}, fmt.Errorf("expected bool, got %T", v)
		}
		return types.Bool(b), nil

	case types.IntType:
		i, err := toInt64(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Int(t.Width, i)

	case types.FloatType:
		f, err := toFloat64(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Float(t.Width, f)

	case types.DecimalType:
		return types.Decimal(fmt.Sprintf("%v", v), t.Precision, t.Scale)

	case types.TextType:
		return types.Text(fmt.Sprintf("%v", v)), nil

	case types.CharType:
		return types.Char(t.Length, fmt.Sprintf("%v", v))

	case types.VarcharType:
		return types.Varchar(t.Length, fmt.Sprintf("%v", v))

	case types.BytesType:
		b, ok := v.([]byte)
		if !ok {
			return types.TypedValue{}, fmt.Errorf("expected []byte, got %T", v)
		}
		return types.Bytes(b), nil

	case types.UUIDType:
		switch u := v.(type) {
		case [16]byte:
			return types.UUID(uuid.UUID(u)), nil
		case string:
			id, err := uuid.Parse(u)
			if err != nil {
				return types.TypedValue{}, err
			}
			return types.UUID(id), nil
		default:
			return types.TypedValue{}, fmt.Errorf("expected uuid, got %T", v)
		}

	case types.DateType, types.TimeType, types.LocalDateTimeType, types.ZonedDateTimeType:
		tm, ok := v.(time.Time)
		if !ok {
			return types.TypedValue{}, fmt.Errorf("expected time.Time, got %T", v)
		}
		switch ut.(type) {
		case types.DateType:
			return types.Date(tm), nil
		case types.TimeType:
			return types.Time(tm), nil
		case types.LocalDateTimeType:
			return types.LocalDateTime(tm), nil
		default:
			return types.ZonedDateTime(tm), nil
		}

	case types.TimeWithOffsetType:
		tm, ok := v.(time.Time)
		if !ok {
			return types.TypedValue{}, fmt.Errorf("expected time.Time, got %T", v)
		}
		return types.TimeWithOffset(tm), nil

	case types.DurationType:
		d, err := toDuration(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Duration(d), nil

	case types.JSONType:
		return types.JSON(v), nil

	case types.JSONBType:
		return types.JSONB(v), nil

	case types.EnumType:
		return types.Enum(t.Members, fmt.Sprintf("%v", v))

	case types.ArrayType:
		return wireArrayToTypedValue(t, v)

	default:
		return types.Text(fmt.Sprintf("%v", v)), nil
	}
}

func wireArrayToTypedValue(t types.ArrayType, v any) (types.TypedValue, error) {
	elems, ok := v.([]any)
	if !ok {
		return types.TypedValue{}, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]types.TypedValue, len(elems))
	for i, e := range elems {
		tv, err := wireToTypedValue(t.Elem, e)
		if err != nil {
			return types.TypedValue{}, fmt.Errorf("array element %d: %w", i, err)
		}
		out[i] = tv
	}
	return types.Array(t.Elem, out), nil
}

// jsonToTypedValue converts a to_jsonb-flattened JSON value back into a
// TypedValue of the given UniversalType, re-parsing strings into their
// semantic type where to_jsonb lost the distinction (timestamps, decimals,
// intervals).
func jsonToTypedValue(ut types.UniversalType, raw json.RawMessage) (types.TypedValue, error) {
	if string(raw) == "null" {
		return types.Null(ut), nil
	}

	switch t := ut.(type) {
	case types.BoolType:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return types.TypedValue{}, err
		}
		return types.Bool(b), nil

	case types.IntType:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return types.TypedValue{}, err
		}
		return types.Int(t.Width, i)

	case types.FloatType:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return types.TypedValue{}, err
		}
		return types.Float(t.Width, f)

	case types.DecimalType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Decimal(s, t.Precision, t.Scale)

	case types.TextType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Text(s), nil

	case types.CharType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Char(t.Length, s)

	case types.VarcharType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Varchar(t.Length, s)

	case types.UUIDType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.UUID(id), nil

	case types.DateType, types.TimeType, types.LocalDateTimeType, types.ZonedDateTimeType, types.TimeWithOffsetType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		tm, err := parseWal2JSONTime(s)
		if err != nil {
			return types.TypedValue{}, err
		}
		switch ut.(type) {
		case types.DateType:
			return types.Date(tm), nil
		case types.TimeType:
			return types.Time(tm), nil
		case types.LocalDateTimeType:
			return types.LocalDateTime(tm), nil
		case types.TimeWithOffsetType:
			return types.TimeWithOffset(tm), nil
		default:
			return types.ZonedDateTime(tm), nil
		}

	case types.DurationType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		d, err := parsePGInterval(s)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Duration(d), nil

	case types.JSONType:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(v), nil

	case types.JSONBType:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.TypedValue{}, err
		}
		return types.JSONB(v), nil

	case types.EnumType:
		s, err := jsonScalarString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Enum(t.Members, s)

	case types.ArrayType:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return types.TypedValue{}, err
		}
		out := make([]types.TypedValue, len(elems))
		for i, e := range elems {
			tv, err := jsonToTypedValue(t.Elem, e)
			if err != nil {
				return types.TypedValue{}, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = tv
		}
		return types.Array(t.Elem, out), nil

	default:
		return types.Text(string(raw)), nil
	}
}

func jsonScalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// Numbers/bools rendered bare by to_jsonb for a column declared text.
	return string(raw), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}

func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		return parsePGInterval(d)
	default:
		return 0, fmt.Errorf("expected interval, got %T", v)
	}
}
