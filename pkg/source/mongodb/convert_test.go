package mongodb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/surrealdb/surreal-sync/pkg/types"
)

func TestBSONToTypedObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	tv, err := bsonToTyped(oid)
	require.NoError(t, err)
	require.Equal(t, types.TextType{}, tv.Type)
	require.Equal(t, oid.Hex(), tv.Value)
}

func TestBSONToTypedDecimal128(t *testing.T) {
	d, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)
	tv, err := bsonToTyped(d)
	require.NoError(t, err)
	require.Equal(t, types.KindDecimal, tv.Type.Kind())
}

func TestBSONToTypedBinary(t *testing.T) {
	tv, err := bsonToTyped(primitive.Binary{Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.Equal(t, types.BytesType{}, tv.Type)
	require.Equal(t, []byte{1, 2, 3}, tv.Value)
}

func TestBSONToTypedSubdocumentIsJSON(t *testing.T) {
	tv, err := bsonToTyped(primitive.M{"nested": "value"})
	require.NoError(t, err)
	require.Equal(t, types.KindJSON, tv.Type.Kind())
}

func TestDocToRowUsesStringifiedID(t *testing.T) {
	oid := primitive.NewObjectID()
	row, err := docToRow("users", bson.M{"_id": oid, "name": "ada"})
	require.NoError(t, err)
	require.Equal(t, "users", row.Table)
	require.Equal(t, []string{"id"}, row.PrimaryKey)
	require.Equal(t, oid.Hex(), row.Columns["id"].Value)
}

func TestDocToRowMissingIDErrors(t *testing.T) {
	_, err := docToRow("users", bson.M{"name": "ada"})
	require.Error(t, err)
}
