// Package types implements the universal type/value lattice that every
// source and sink converts through, so a PostgreSQL numeric, a MongoDB
// Decimal128, and a MySQL decimal column all carry as the same DecimalType
// on the wire between extractor and sink.
package types

import "fmt"

// Kind identifies a UniversalType variant without requiring a type switch
// on the concrete Go type.
type Kind string

const (
	KindBool           Kind = "bool"
	KindInt            Kind = "int"
	KindFloat          Kind = "float"
	KindDecimal        Kind = "decimal"
	KindText           Kind = "text"
	KindChar           Kind = "char"
	KindVarchar        Kind = "varchar"
	KindBytes          Kind = "bytes"
	KindUUID           Kind = "uuid"
	KindDate           Kind = "date"
	KindTime           Kind = "time"
	KindLocalDateTime  Kind = "local_datetime"
	KindZonedDateTime  Kind = "zoned_datetime"
	KindTimeWithOffset Kind = "time_with_offset"
	KindDuration       Kind = "duration"
	KindJSON           Kind = "json"
	KindJSONB          Kind = "jsonb"
	KindEnum           Kind = "enum"
	KindSet            Kind = "set"
	KindArray          Kind = "array"
	KindGeometry       Kind = "geometry"
	KindRecord         Kind = "record"
)

// UniversalType is a closed sum type: every source column type and every
// sink wire type maps onto exactly one of the variants below. Callers outside
// this package should treat it as opaque and dispatch on Kind(), not on the
// concrete Go type, so new variants can be added without breaking switches
// elsewhere (pkg/sink's encoder and the source converters nonetheless
// switch on the concrete type).
type UniversalType interface {
	Kind() Kind
	String() string
}

// BoolType is the boolean variant.
type BoolType struct{}

func (BoolType) Kind() Kind     { return KindBool }
func (BoolType) String() string { return "bool" }

// IntType is a signed integer of the given bit width (8, 16, 32, or 64).
type IntType struct {
	Width int
}

func (t IntType) Kind() Kind     { return KindInt }
func (t IntType) String() string { return fmt.Sprintf("int%d", t.Width) }

// FloatType is an IEEE-754 float of the given bit width (32 or 64).
type FloatType struct {
	Width int
}

func (t FloatType) Kind() Kind     { return KindFloat }
func (t FloatType) String() string { return fmt.Sprintf("float%d", t.Width) }

// DecimalType is an arbitrary-precision decimal. Precision and scale are
// capped at 38 to match the widest source (PostgreSQL numeric) and sink
// representations; arithmetic is never performed on this type, only
// round-tripped as a canonical string.
type DecimalType struct {
	Precision uint8
	Scale     uint8
}

func (t DecimalType) Kind() Kind { return KindDecimal }
func (t DecimalType) String() string {
	return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
}

// TextType is unbounded text.
type TextType struct{}

func (TextType) Kind() Kind     { return KindText }
func (TextType) String() string { return "text" }

// CharType is fixed-length text, padded to Length by the source.
type CharType struct {
	Length int
}

func (t CharType) Kind() Kind     { return KindChar }
func (t CharType) String() string { return fmt.Sprintf("char(%d)", t.Length) }

// VarcharType is bounded text with a maximum Length.
type VarcharType struct {
	Length int
}

func (t VarcharType) Kind() Kind     { return KindVarchar }
func (t VarcharType) String() string { return fmt.Sprintf("varchar(%d)", t.Length) }

// BytesType is an opaque byte string.
type BytesType struct{}

func (BytesType) Kind() Kind     { return KindBytes }
func (BytesType) String() string { return "bytes" }

// UUIDType is a 128-bit UUID.
type UUIDType struct{}

func (UUIDType) Kind() Kind     { return KindUUID }
func (UUIDType) String() string { return "uuid" }

// DateType is a calendar date with no time-of-day component.
type DateType struct{}

func (DateType) Kind() Kind     { return KindDate }
func (DateType) String() string { return "date" }

// TimeType is a wall-clock time of day with no date component.
type TimeType struct{}

func (TimeType) Kind() Kind     { return KindTime }
func (TimeType) String() string { return "time" }

// LocalDateTimeType is a date + time of day with no attached zone or offset.
type LocalDateTimeType struct{}

func (LocalDateTimeType) Kind() Kind     { return KindLocalDateTime }
func (LocalDateTimeType) String() string { return "local_datetime" }

// ZonedDateTimeType is an instant: a date + time of day anchored to UTC.
type ZonedDateTimeType struct{}

func (ZonedDateTimeType) Kind() Kind     { return KindZonedDateTime }
func (ZonedDateTimeType) String() string { return "zoned_datetime" }

// TimeWithOffsetType is a wall time plus a UTC offset. It is deliberately not
// an instant: the same wall clock reading with two different offsets refers
// to two different instants, so the offset is preserved verbatim rather than
// normalized to UTC.
type TimeWithOffsetType struct{}

func (TimeWithOffsetType) Kind() Kind     { return KindTimeWithOffset }
func (TimeWithOffsetType) String() string { return "time_with_offset" }

// DurationType is a span of time. Calendar components (months, years) in the
// source are normalized to a fixed-width day count before being carried here.
type DurationType struct{}

func (DurationType) Kind() Kind     { return KindDuration }
func (DurationType) String() string { return "duration" }

// JSONType is a semi-structured value with no binary storage guarantee from
// the source (PostgreSQL json, as opposed to jsonb).
type JSONType struct{}

func (JSONType) Kind() Kind     { return KindJSON }
func (JSONType) String() string { return "json" }

// JSONBType is a semi-structured value stored in a binary, order-normalized
// form by the source (PostgreSQL jsonb).
type JSONBType struct{}

func (JSONBType) Kind() Kind     { return KindJSONB }
func (JSONBType) String() string { return "jsonb" }

// EnumType restricts a text value to a fixed member list.
type EnumType struct {
	Members []string
}

func (t EnumType) Kind() Kind     { return KindEnum }
func (t EnumType) String() string { return fmt.Sprintf("enum%v", t.Members) }

// SetType is a MySQL-style multi-valued column: any subset of Members.
type SetType struct {
	Members []string
}

func (t SetType) Kind() Kind     { return KindSet }
func (t SetType) String() string { return fmt.Sprintf("set%v", t.Members) }

// ArrayType is a homogeneous array of Elem.
type ArrayType struct {
	Elem UniversalType
}

func (t ArrayType) Kind() Kind     { return KindArray }
func (t ArrayType) String() string { return fmt.Sprintf("array<%s>", t.Elem.String()) }

// GeometryKind tags the flavor of geometry a GeometryType value carries.
type GeometryKind string

const (
	GeometryPoint      GeometryKind = "point"
	GeometryLineString GeometryKind = "linestring"
	GeometryPolygon    GeometryKind = "polygon"
	GeometryCollection GeometryKind = "collection"
)

// GeometryType is a tagged geometry variant carried as GeoJSON-equivalent data.
type GeometryType struct {
	GeoKind GeometryKind
}

func (t GeometryType) Kind() Kind     { return KindGeometry }
func (t GeometryType) String() string { return fmt.Sprintf("geometry(%s)", t.GeoKind) }

// RecordType is a reference to a row in another (or the same) table — the
// target's record-link type, e.g. `type::thing(table, id)`.
type RecordType struct {
	Table string
}

func (t RecordType) Kind() Kind     { return KindRecord }
func (t RecordType) String() string { return fmt.Sprintf("record<%s>", t.Table) }
