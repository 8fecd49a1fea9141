package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		value   int64
		wantErr bool
	}{
		{name: "int8 in range", width: 8, value: 100},
		{name: "int8 overflow", width: 8, value: 200, wantErr: true},
		{name: "int16 in range", width: 16, value: 30000},
		{name: "int32 in range", width: 32, value: 2_000_000_000},
		{name: "int64 any value", width: 64, value: 9_000_000_000_000_000_000},
		{name: "invalid width", width: 24, value: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Int(tt.width, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, IntType{Width: tt.width}, v.Type)
			assert.Equal(t, tt.value, v.Value)
			assert.False(t, v.IsNull)
		})
	}
}

func TestVarchar(t *testing.T) {
	v, err := Varchar(5, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Value)

	_, err = Varchar(3, "hello")
	assert.Error(t, err)

	v, err = Varchar(-1, "anything goes here")
	require.NoError(t, err)
	assert.Equal(t, "anything goes here", v.Value)
}

func TestDecimal(t *testing.T) {
	v, err := Decimal("123.4500", 10, 4)
	require.NoError(t, err)
	assert.Equal(t, DecimalType{Precision: 10, Scale: 4}, v.Type)

	_, err = Decimal("not-a-number", 10, 4)
	assert.Error(t, err)
}

func TestEnum(t *testing.T) {
	members := []string{"pending", "active", "closed"}

	v, err := Enum(members, "active")
	require.NoError(t, err)
	assert.Equal(t, "active", v.Value)

	_, err = Enum(members, "unknown")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	members := []string{"read", "write", "admin"}

	v, err := Set(members, []string{"read", "write"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, v.Value)

	_, err = Set(members, []string{"read", "execute"})
	assert.Error(t, err)
}

func TestNull(t *testing.T) {
	v := Null(TextType{})
	assert.True(t, v.IsNull)
	assert.Equal(t, TextType{}, v.Type)
	assert.Nil(t, v.Value)
}

func TestArray(t *testing.T) {
	elems := []TypedValue{Bool(true), Bool(false)}
	v := Array(BoolType{}, elems)
	assert.Equal(t, ArrayType{Elem: BoolType{}}, v.Type)
	assert.Equal(t, elems, v.Value)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		typ  UniversalType
		want string
	}{
		{IntType{Width: 32}, "int32"},
		{FloatType{Width: 64}, "float64"},
		{DecimalType{Precision: 10, Scale: 2}, "decimal(10,2)"},
		{VarcharType{Length: 255}, "varchar(255)"},
		{ArrayType{Elem: BoolType{}}, "array<bool>"},
		{RecordType{Table: "users"}, "record<users>"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}
