package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TypedValue pairs a UniversalType with a validated payload. Null is
// represented by IsNull with Value left at its zero value, never by a nil
// interface, so every TypedValue always carries a concrete Type.
type TypedValue struct {
	Type   UniversalType
	IsNull bool
	Value  any
}

// Null returns a null TypedValue of the given type.
func Null(t UniversalType) TypedValue {
	return TypedValue{Type: t, IsNull: true}
}

// Bool constructs a non-null BoolType value.
func Bool(v bool) TypedValue {
	return TypedValue{Type: BoolType{}, Value: v}
}

// Int constructs a non-null IntType value of the given bit width. Width must
// be 8, 16, 32, or 64.
func Int(width int, v int64) (TypedValue, error) {
	switch width {
	case 8, 16, 32, 64:
	default:
		return TypedValue{}, fmt.Errorf("types: invalid int width %d", width)
	}
	if width < 64 {
		bits := int64(1) << (width - 1)
		if v >= bits || v < -bits {
			return TypedValue{}, fmt.Errorf("types: value %d overflows int%d", v, width)
		}
	}
	return TypedValue{Type: IntType{Width: width}, Value: v}, nil
}

// Float constructs a non-null FloatType value of the given bit width. Width
// must be 32 or 64.
func Float(width int, v float64) (TypedValue, error) {
	if width != 32 && width != 64 {
		return TypedValue{}, fmt.Errorf("types: invalid float width %d", width)
	}
	return TypedValue{Type: FloatType{Width: width}, Value: v}, nil
}

// Decimal constructs a non-null DecimalType value from its canonical string
// representation. The string is parsed once to validate it, but the decimal
// is carried for round-tripping, never used for arithmetic downstream.
func Decimal(s string, precision, scale uint8) (TypedValue, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return TypedValue{}, fmt.Errorf("types: invalid decimal %q: %w", s, err)
	}
	return TypedValue{Type: DecimalType{Precision: precision, Scale: scale}, Value: d}, nil
}

// Text constructs a non-null TextType value.
func Text(v string) TypedValue {
	return TypedValue{Type: TextType{}, Value: v}
}

// Varchar constructs a non-null VarcharType value, validating v does not
// exceed Length (a negative Length means unbounded).
func Varchar(length int, v string) (TypedValue, error) {
	if length >= 0 && len(v) > length {
		return TypedValue{}, fmt.Errorf("types: value exceeds varchar(%d)", length)
	}
	return TypedValue{Type: VarcharType{Length: length}, Value: v}, nil
}

// Char constructs a non-null CharType value.
func Char(length int, v string) (TypedValue, error) {
	if len(v) > length {
		return TypedValue{}, fmt.Errorf("types: value exceeds char(%d)", length)
	}
	return TypedValue{Type: CharType{Length: length}, Value: v}, nil
}

// Bytes constructs a non-null BytesType value.
func Bytes(v []byte) TypedValue {
	return TypedValue{Type: BytesType{}, Value: v}
}

// UUID constructs a non-null UUIDType value.
func UUID(v uuid.UUID) TypedValue {
	return TypedValue{Type: UUIDType{}, Value: v}
}

// Date constructs a non-null DateType value. Only the year/month/day
// components of v are meaningful.
func Date(v time.Time) TypedValue {
	return TypedValue{Type: DateType{}, Value: v}
}

// Time constructs a non-null TimeType value. Only the time-of-day components
// of v are meaningful.
func Time(v time.Time) TypedValue {
	return TypedValue{Type: TimeType{}, Value: v}
}

// LocalDateTime constructs a non-null LocalDateTimeType value.
func LocalDateTime(v time.Time) TypedValue {
	return TypedValue{Type: LocalDateTimeType{}, Value: v}
}

// ZonedDateTime constructs a non-null ZonedDateTimeType value, an instant
// anchored to UTC.
func ZonedDateTime(v time.Time) TypedValue {
	return TypedValue{Type: ZonedDateTimeType{}, Value: v.UTC()}
}

// TimeWithOffset constructs a non-null TimeWithOffsetType value, preserving
// v's original offset rather than normalizing it to UTC.
func TimeWithOffset(v time.Time) TypedValue {
	return TypedValue{Type: TimeWithOffsetType{}, Value: v}
}

// Duration constructs a non-null DurationType value.
func Duration(v time.Duration) TypedValue {
	return TypedValue{Type: DurationType{}, Value: v}
}

// JSON constructs a non-null JSONType value from already-decoded JSON (a
// map[string]any, []any, string, float64, bool, or nil).
func JSON(v any) TypedValue {
	return TypedValue{Type: JSONType{}, Value: v}
}

// JSONB constructs a non-null JSONBType value.
func JSONB(v any) TypedValue {
	return TypedValue{Type: JSONBType{}, Value: v}
}

// Enum constructs a non-null EnumType value, validating v is a declared
// member.
func Enum(members []string, v string) (TypedValue, error) {
	for _, m := range members {
		if m == v {
			return TypedValue{Type: EnumType{Members: members}, Value: v}, nil
		}
	}
	return TypedValue{}, fmt.Errorf("types: %q is not a member of enum%v", v, members)
}

// Set constructs a non-null SetType value, validating every element of v is
// a declared member.
func Set(members []string, v []string) (TypedValue, error) {
	allowed := make(map[string]struct{}, len(members))
	for _, m := range members {
		allowed[m] = struct{}{}
	}
	for _, item := range v {
		if _, ok := allowed[item]; !ok {
			return TypedValue{}, fmt.Errorf("types: %q is not a member of set%v", item, members)
		}
	}
	return TypedValue{Type: SetType{Members: members}, Value: v}, nil
}

// Array constructs a non-null ArrayType value. Elements are not re-validated
// against elem here; callers are expected to have constructed each element
// with the matching constructor for elem.
func Array(elem UniversalType, v []TypedValue) TypedValue {
	return TypedValue{Type: ArrayType{Elem: elem}, Value: v}
}

// Geometry constructs a non-null GeometryType value carrying GeoJSON-shaped
// data (already decoded, as with JSON).
func Geometry(kind GeometryKind, v any) TypedValue {
	return TypedValue{Type: GeometryType{GeoKind: kind}, Value: v}
}

// Record constructs a non-null RecordType value referencing id in table.
func Record(table, id string) TypedValue {
	return TypedValue{Type: RecordType{Table: table}, Value: id}
}
