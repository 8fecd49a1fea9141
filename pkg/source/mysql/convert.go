package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// sqlValueToTyped converts a database/sql-scanned value (bool, int64,
// float64, []byte, string, or time.Time depending on driver settings) into
// the TypedValue named by ut.
func sqlValueToTyped(ut types.UniversalType, v any) (types.TypedValue, error) {
	if v == nil {
		return types.Null(ut), nil
	}

	switch t := ut.(type) {
	case types.BoolType:
		switch x := v.(type) {
		case bool:
			return types.Bool(x), nil
		case int64:
			return types.Bool(x != 0), nil
		case []byte:
			return types.Bool(len(x) == 1 && x[0] != 0), nil
		}
	case types.IntType:
		n, err := toInt64(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Int(t.Width, n)
	case types.FloatType:
		f, err := toFloat64(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Float(t.Width, f)
	case types.DecimalType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		if _, err := decimal.NewFromString(s); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse decimal %q: %v", errs.ErrSchemaMismatch, s, err)
		}
		return types.Decimal(s, t.Precision, t.Scale)
	case types.CharType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Char(t.Length, s)
	case types.VarcharType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Varchar(t.Length, s)
	case types.TextType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Text(s), nil
	case types.BytesType:
		switch x := v.(type) {
		case []byte:
			return types.Bytes(x), nil
		case string:
			return types.Bytes([]byte(x)), nil
		}
	case types.DateType:
		tm, err := toTimeValue(v, "2006-01-02")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Date(tm), nil
	case types.TimeType:
		tm, err := toTimeValue(v, "15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Time(tm), nil
	case types.LocalDateTimeType:
		tm, err := toTimeValue(v, "2006-01-02 15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.LocalDateTime(tm), nil
	case types.ZonedDateTimeType:
		tm, err := toTimeValue(v, "2006-01-02 15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.ZonedDateTime(tm), nil
	case types.JSONBType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse json %q: %v", errs.ErrSchemaMismatch, s, err)
		}
		return types.JSONB(decoded), nil
	case types.SetType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Set(t.Members, SplitSetValue(s))
	case types.EnumType:
		s, err := toStringValue(v)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Enum(t.Members, s)
	}

	return types.TypedValue{}, fmt.Errorf("%w: cannot convert %T to %s", errs.ErrSchemaMismatch, v, ut.Kind())
}

// jsonToTyped converts a JSON_OBJECT-encoded field (produced by the audit
// triggers) into a TypedValue, mirroring sqlValueToTyped but starting from
// the raw JSON representation MySQL's JSON_OBJECT() emits.
func jsonToTyped(ut types.UniversalType, raw json.RawMessage) (types.TypedValue, error) {
	if string(raw) == "null" {
		return types.Null(ut), nil
	}

	switch t := ut.(type) {
	case types.BoolType:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return types.Bool(b), nil
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return types.Bool(n != 0), nil
		}
	case types.IntType:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse int from %s: %v", errs.ErrSchemaMismatch, raw, err)
		}
		return types.Int(t.Width, n)
	case types.FloatType:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse float from %s: %v", errs.ErrSchemaMismatch, raw, err)
		}
		return types.Float(t.Width, f)
	case types.DecimalType:
		s := jsonScalarString(raw)
		if _, err := decimal.NewFromString(s); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse decimal %q: %v", errs.ErrSchemaMismatch, s, err)
		}
		return types.Decimal(s, t.Precision, t.Scale)
	case types.CharType:
		return types.Char(t.Length, jsonScalarString(raw))
	case types.VarcharType:
		return types.Varchar(t.Length, jsonScalarString(raw))
	case types.TextType:
		return types.Text(jsonScalarString(raw)), nil
	case types.BytesType:
		return types.Bytes([]byte(jsonScalarString(raw))), nil
	case types.DateType:
		tm, err := parseMySQLTime(jsonScalarString(raw), "2006-01-02")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Date(tm), nil
	case types.TimeType:
		tm, err := parseMySQLTime(jsonScalarString(raw), "15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.Time(tm), nil
	case types.LocalDateTimeType:
		tm, err := parseMySQLTime(jsonScalarString(raw), "2006-01-02 15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.LocalDateTime(tm), nil
	case types.ZonedDateTimeType:
		tm, err := parseMySQLTime(jsonScalarString(raw), "2006-01-02 15:04:05")
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.ZonedDateTime(tm), nil
	case types.JSONBType:
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: parse json %s: %v", errs.ErrSchemaMismatch, raw, err)
		}
		return types.JSONB(decoded), nil
	case types.SetType:
		return types.Set(t.Members, SplitSetValue(jsonScalarString(raw)))
	case types.EnumType:
		return types.Enum(t.Members, jsonScalarString(raw))
	}

	return types.TypedValue{}, fmt.Errorf("%w: cannot convert json %s to %s", errs.ErrSchemaMismatch, raw, ut.Kind())
}

// jsonScalarString unwraps a JSON-encoded scalar (string or number) into its
// plain text form, tolerating JSON_OBJECT's habit of emitting unquoted
// numbers for numeric-looking columns.
func jsonScalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func toStringValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return fmt.Sprintf("%d", x), nil
	case float64:
		return fmt.Sprintf("%v", x), nil
	default:
		return "", fmt.Errorf("%w: cannot convert %T to string", errs.ErrSchemaMismatch, v)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case []byte:
		var n int64
		if _, err := fmt.Sscanf(string(x), "%d", &n); err != nil {
			return 0, fmt.Errorf("%w: parse int from %q: %v", errs.ErrSchemaMismatch, x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to int64", errs.ErrSchemaMismatch, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []byte:
		var f float64
		if _, err := fmt.Sscanf(string(x), "%g", &f); err != nil {
			return 0, fmt.Errorf("%w: parse float from %q: %v", errs.ErrSchemaMismatch, x, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to float64", errs.ErrSchemaMismatch, v)
	}
}

func toTimeValue(v any, layout string) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return parseMySQLTime(x, layout)
	case []byte:
		return parseMySQLTime(string(x), layout)
	default:
		return time.Time{}, fmt.Errorf("%w: cannot convert %T to time", errs.ErrSchemaMismatch, v)
	}
}

func parseMySQLTime(s string, layout string) (time.Time, error) {
	tm, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse time %q: %v", errs.ErrProtocol, s, err)
	}
	return tm, nil
}
