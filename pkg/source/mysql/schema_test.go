package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

func TestMySQLTypeToUniversalTinyintOneIsBool(t *testing.T) {
	ut, err := mysqlTypeToUniversal("tinyint", "tinyint(1)", false, false)
	require.NoError(t, err)
	require.Equal(t, types.BoolType{}, ut)
}

func TestMySQLTypeToUniversalTinyintIsInt8(t *testing.T) {
	ut, err := mysqlTypeToUniversal("tinyint", "tinyint(4)", false, false)
	require.NoError(t, err)
	require.Equal(t, types.IntType{Width: 8}, ut)
}

func TestMySQLTypeToUniversalBooleanOverride(t *testing.T) {
	ut, err := mysqlTypeToUniversal("int", "int(11)", true, false)
	require.NoError(t, err)
	require.Equal(t, types.BoolType{}, ut)
}

func TestMySQLTypeToUniversalSet(t *testing.T) {
	ut, err := mysqlTypeToUniversal("set", "set('tech','news','sports')", false, false)
	require.NoError(t, err)
	require.Equal(t, types.SetType{Members: []string{"tech", "news", "sports"}}, ut)
}

func TestMySQLTypeToUniversalEnum(t *testing.T) {
	ut, err := mysqlTypeToUniversal("enum", "enum('a','b')", false, false)
	require.NoError(t, err)
	require.Equal(t, types.EnumType{Members: []string{"a", "b"}}, ut)
}

func TestMySQLTypeToUniversalUnmappableDowngradesToText(t *testing.T) {
	ut, err := mysqlTypeToUniversal("geometry", "geometry", false, false)
	require.NoError(t, err)
	require.Equal(t, types.TextType{}, ut)
}

func TestMySQLTypeToUniversalUnmappableStrictFails(t *testing.T) {
	_, err := mysqlTypeToUniversal("geometry", "geometry", false, true)
	require.Error(t, err)
}

func TestMySQLTypeToUniversalDecimal(t *testing.T) {
	ut, err := mysqlTypeToUniversal("decimal", "decimal(10,2)", false, false)
	require.NoError(t, err)
	require.Equal(t, types.DecimalType{Precision: 10, Scale: 2}, ut)
}

func TestSplitSetValue(t *testing.T) {
	require.Equal(t, []string{"tech", "news"}, SplitSetValue("tech,news"))
	require.Nil(t, SplitSetValue(""))
}

func TestParseEnumMembers(t *testing.T) {
	require.Equal(t, []string{"tech", "news", "sports"}, parseEnumMembers("set('tech','news','sports')"))
}
