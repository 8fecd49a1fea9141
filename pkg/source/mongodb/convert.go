package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// idString renders a document's _id as the text primary key surreal-sync
// carries between extractor and sink.
func idString(id any) (string, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex(), nil
	case string:
		return v, nil
	case int32:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// bsonToTyped maps a decoded BSON value onto the universal type lattice:
// ObjectId -> Text, Decimal128 -> Decimal, Binary -> Bytes, subdocuments
// and arrays -> Json (Mongo documents carry no fixed schema, so there is no
// declared element type to validate an Array constructor against).
func bsonToTyped(v any) (types.TypedValue, error) {
	switch x := v.(type) {
	case nil:
		return types.Null(types.TextType{}), nil
	case bool:
		return types.Bool(x), nil
	case int32:
		return types.Int(32, int64(x))
	case int64:
		return types.Int(64, x)
	case float64:
		return types.Float(64, x)
	case string:
		return types.Text(x), nil
	case primitive.ObjectID:
		return types.Text(x.Hex()), nil
	case primitive.Decimal128:
		s := x.String()
		return types.Decimal(s, 34, 6)
	case primitive.Binary:
		return types.Bytes(x.Data), nil
	case primitive.DateTime:
		return types.ZonedDateTime(x.Time()), nil
	case primitive.A:
		decoded, err := decodeAny(x)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	case primitive.M:
		decoded, err := decodeAny(x)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	case bson.D:
		decoded, err := decodeAny(x.Map())
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	case primitive.Null:
		return types.Null(types.TextType{}), nil
	default:
		return types.TypedValue{}, fmt.Errorf("%w: unmappable bson value of type %T", errs.ErrSchemaMismatch, v)
	}
}

// decodeAny recursively converts nested BSON containers into plain Go
// values (map[string]any, []any, primitives) suitable for types.JSON.
func decodeAny(v any) (any, error) {
	switch x := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, item := range x {
			d, err := decodeAny(item)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			d, err := decodeAny(item)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case bson.D:
		return decodeAny(x.Map())
	case primitive.A:
		out := make([]any, len(x))
		for i, item := range x {
			d, err := decodeAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			d, err := decodeAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case primitive.ObjectID:
		return x.Hex(), nil
	case primitive.Decimal128:
		return x.String(), nil
	case primitive.Binary:
		return x.Data, nil
	case primitive.DateTime:
		return x.Time(), nil
	default:
		return x, nil
	}
}

// docToRow converts a decoded BSON document into a universal Row, keyed by
// its stringified _id.
func docToRow(collection string, doc bson.M) (types.Row, error) {
	idRaw, ok := doc["_id"]
	if !ok {
		return types.Row{}, fmt.Errorf("%w: document missing _id", errs.ErrSchemaMismatch)
	}
	id, err := idString(idRaw)
	if err != nil {
		return types.Row{}, err
	}

	columns := make(map[string]types.TypedValue, len(doc))
	for k, v := range doc {
		tv, err := bsonToTyped(v)
		if err != nil {
			return types.Row{}, fmt.Errorf("%w: field %q: %v", errs.ErrSchemaMismatch, k, err)
		}
		columns[k] = tv
	}
	columns["id"] = types.Text(id)

	return types.Row{Table: collection, PrimaryKey: []string{"id"}, Columns: columns}, nil
}
