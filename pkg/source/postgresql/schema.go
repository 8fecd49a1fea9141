package postgresql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// Schema maps table -> column -> UniversalType, as introspected from
// information_schema. It is consulted both when decoding wal2json frames
// (column wire values are typed per §4.D) and when reconstructing types
// flattened by the trigger extractor's to_jsonb payload.
type Schema map[string]map[string]types.UniversalType

// CollectSchema introspects every tracked table's columns (or every table
// in cfg.Schema if cfg.Tables is empty) via information_schema, mapping
// each PostgreSQL column type to its UniversalType.
func CollectSchema(ctx context.Context, pool *pgxpool.Pool, cfg Config) (Schema, error) {
	tableFilter := ""
	args := []any{cfg.schema()}
	if len(cfg.Tables) > 0 {
		tableFilter = "AND table_name = ANY($2)"
		args = append(args, cfg.Tables)
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`
		SELECT table_name, column_name, data_type, udt_name,
		       numeric_precision, numeric_scale, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 %s
		ORDER BY table_name, ordinal_position`, tableFilter), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect columns: %v", errs.ErrResource, err)
	}
	defer rows.Close()

	schema := make(Schema)
	for rows.Next() {
		var table, column, dataType, udtName string
		var numPrecision, numScale, charMaxLen *int
		if err := rows.Scan(&table, &column, &dataType, &udtName, &numPrecision, &numScale, &charMaxLen); err != nil {
			return nil, fmt.Errorf("%w: scan column row: %v", errs.ErrResource, err)
		}

		ut, err := pgTypeToUniversal(ctx, pool, dataType, udtName, numPrecision, numScale, charMaxLen, cfg.StrictSchema)
		if err != nil {
			return nil, err
		}

		if schema[table] == nil {
			schema[table] = make(map[string]types.UniversalType)
		}
		schema[table][column] = ut
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate columns: %v", errs.ErrResource, err)
	}
	return schema, nil
}

// pgTypeToUniversal implements the PostgreSQL-to-universal type mapping
// table. Array types
// (udt_name starting with "_") recurse on the element type. Unknown types
// degrade to Text unless strict is set, in which case the caller gets
// ErrSchemaMismatch.
func pgTypeToUniversal(ctx context.Context, pool *pgxpool.Pool, dataType, udtName string, numPrecision, numScale, charMaxLen *int, strict bool) (types.UniversalType, error) {
	if strings.HasPrefix(udtName, "_") {
		elemUDT := strings.TrimPrefix(udtName, "_")
		elemDataType := elemUDT
		elem, err := pgTypeToUniversal(ctx, pool, elemDataType, elemUDT, numPrecision, numScale, charMaxLen, strict)
		if err != nil {
			return nil, err
		}
		return types.ArrayType{Elem: elem}, nil
	}

	switch udtName {
	case "bool":
		return types.BoolType{}, nil
	case "int2":
		return types.IntType{Width: 16}, nil
	case "int4":
		return types.IntType{Width: 32}, nil
	case "int8":
		return types.IntType{Width: 64}, nil
	case "float4":
		return types.FloatType{Width: 32}, nil
	case "float8":
		return types.FloatType{Width: 64}, nil
	case "numeric":
		precision, scale := 38, 0
		if numPrecision != nil {
			precision = min(*numPrecision, 38)
		}
		if numScale != nil {
			scale = min(*numScale, 38)
		}
		return types.DecimalType{Precision: uint8(precision), Scale: uint8(scale)}, nil
	case "text":
		return types.TextType{}, nil
	case "bpchar":
		length := 0
		if charMaxLen != nil {
			length = *charMaxLen
		}
		return types.CharType{Length: length}, nil
	case "varchar":
		length := -1
		if charMaxLen != nil {
			length = *charMaxLen
		}
		return types.VarcharType{Length: length}, nil
	case "bytea":
		return types.BytesType{}, nil
	case "uuid":
		return types.UUIDType{}, nil
	case "date":
		return types.DateType{}, nil
	case "time", "timetz":
		// timetz is a wall time plus offset: not an instant, carried
		// verbatim rather than normalized to UTC.
		if udtName == "timetz" {
			return types.TimeWithOffsetType{}, nil
		}
		return types.TimeType{}, nil
	case "timestamp":
		return types.LocalDateTimeType{}, nil
	case "timestamptz":
		return types.ZonedDateTimeType{}, nil
	case "interval":
		return types.DurationType{}, nil
	case "json":
		return types.JSONType{}, nil
	case "jsonb":
		return types.JSONBType{}, nil
	default:
		// Enum types show up in udt_name as the type's own name; detect via
		// pg_enum rather than hand-maintaining a list of them.
		if members, err := enumMembers(ctx, pool, udtName); err == nil && len(members) > 0 {
			return types.EnumType{Members: members}, nil
		}
		if strict {
			return nil, fmt.Errorf("%w: unmappable postgresql type %q (%s)", errs.ErrSchemaMismatch, udtName, dataType)
		}
		log.WithSource("postgresql").Warn().Str("udt_name", udtName).Msg("unmappable type, downgrading to text")
		return types.TextType{}, nil
	}
}

// PrimaryKeyColumns introspects every tracked table's declared primary key
// column(s), in ordinal position order, via information_schema. The trigger
// extractor uses this instead of guessing a primary key column by name; the
// logical extractor takes keys from each wal2json frame's pk section.
func PrimaryKeyColumns(ctx context.Context, pool *pgxpool.Pool, cfg Config) (map[string][]string, error) {
	tableFilter := ""
	args := []any{cfg.schema()}
	if len(cfg.Tables) > 0 {
		tableFilter = "AND tc.table_name = ANY($2)"
		args = append(args, cfg.Tables)
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 %s
		ORDER BY tc.table_name, kcu.ordinal_position`, tableFilter), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect primary keys: %v", errs.ErrResource, err)
	}
	defer rows.Close()

	pks := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("%w: scan primary key row: %v", errs.ErrResource, err)
		}
		pks[table] = append(pks[table], column)
	}
	return pks, rows.Err()
}

func enumMembers(ctx context.Context, pool *pgxpool.Pool, typeName string) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		WHERE t.typname = $1
		ORDER BY e.enumsortorder`, typeName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		members = append(members, label)
	}
	return members, rows.Err()
}

// currentLSN reads pg_current_wal_lsn() as the server's current position;
// it does not fall back to the last replayed LSN on a replica. The logical
// extractor's pre/post snapshot checkpoints come from here; the trigger
// extractor records MAX(sequence_id) instead.
func currentLSN(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var lsn string
	err := pool.QueryRow(ctx, `SELECT pg_current_wal_lsn()::text`).Scan(&lsn)
	if err != nil {
		return "", fmt.Errorf("%w: read current wal lsn: %v", errs.ErrResource, err)
	}
	return normalizeLSN(lsn), nil
}

// normalizeLSN converts PostgreSQL's native "XXXXXXXX/XXXXXXXX" LSN
// rendering (arbitrary-width hex segments) into the canonical unsigned
// "segment/offset" hex-pair form used by checkpoint.Compare.
func normalizeLSN(lsn string) string {
	parts := strings.SplitN(lsn, "/", 2)
	if len(parts) != 2 {
		return lsn
	}
	seg, err1 := strconv.ParseUint(parts[0], 16, 64)
	off, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return lsn
	}
	return fmt.Sprintf("%x/%x", seg, off)
}
