package neo4j

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// valueToTyped maps a decoded Bolt value onto the universal type lattice.
// Composite values (maps, lists, points) have no declared schema in Neo4j,
// so they are carried as Json, mirroring how surreal-sync treats MongoDB
// subdocuments.
func valueToTyped(v any) (types.TypedValue, error) {
	switch x := v.(type) {
	case nil:
		return types.Null(types.TextType{}), nil
	case bool:
		return types.Bool(x), nil
	case int64:
		return types.Int(64, x)
	case float64:
		return types.Float(64, x)
	case string:
		return types.Text(x), nil
	case []byte:
		return types.Bytes(x), nil
	case time.Time:
		return types.ZonedDateTime(x), nil
	case dbtype.Date:
		return types.Date(x.Time()), nil
	case dbtype.LocalTime:
		return types.Time(x.Time()), nil
	case dbtype.LocalDateTime:
		return types.LocalDateTime(x.Time()), nil
	case dbtype.Time:
		return types.TimeWithOffset(x.Time()), nil
	case dbtype.Duration:
		return types.Duration(neo4jDurationToGo(x)), nil
	case []any:
		decoded, err := decodeAny(x)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	case map[string]any:
		decoded, err := decodeAny(x)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	case dbtype.Point2D, dbtype.Point3D:
		decoded, err := decodeAny(x)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.JSON(decoded), nil
	default:
		return types.TypedValue{}, fmt.Errorf("%w: unmappable neo4j value of type %T", errs.ErrSchemaMismatch, v)
	}
}

// decodeAny converts nested Bolt containers into plain Go values suitable
// for types.JSON, recursing through lists and maps.
func decodeAny(v any) (any, error) {
	switch x := v.(type) {
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
	case dbtype.Point2D:
		return map[string]any{"x": x.X, "y": x.Y, "srId": x.SpatialRefId}, nil
	case dbtype.Point3D:
		return map[string]any{"x": x.X, "y": x.Y, "z": x.Z, "srId": x.SpatialRefId}, nil
	case dbtype.Date:
		return x.Time().Format("2006-01-02"), nil
	case dbtype.LocalDateTime, dbtype.LocalTime, dbtype.Time, time.Time:
		return x, nil
	default:
		return x, nil
	}
}

// neo4jDurationToGo normalizes a Neo4j duration's calendar components
// (months, days) to a fixed-width day count, matching the PostgreSQL
// interval normalization rule used elsewhere in this module: 1 month = 30 days.
func neo4jDurationToGo(d dbtype.Duration) time.Duration {
	days := d.Months*30 + d.Days
	return time.Duration(days)*24*time.Hour + time.Duration(d.Seconds)*time.Second + time.Duration(int64(d.Nanos))*time.Nanosecond
}

// nodeToRow converts a scanned node's label and property map into a
// universal Row, using the node's element ID as the dedicated id column.
func nodeToRow(label string, elementID string, props map[string]any) (types.Row, error) {
	columns := make(map[string]types.TypedValue, len(props)+1)
	for k, v := range props {
		tv, err := valueToTyped(v)
		if err != nil {
			return types.Row{}, fmt.Errorf("%w: property %q: %v", errs.ErrSchemaMismatch, k, err)
		}
		columns[k] = tv
	}
	columns["id"] = types.Text(elementID)

	return types.Row{Table: label, PrimaryKey: []string{"id"}, Columns: columns}, nil
}
