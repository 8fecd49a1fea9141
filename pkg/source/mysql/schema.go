package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// Schema maps table -> column -> UniversalType.
type Schema map[string]map[string]types.UniversalType

// CollectSchema introspects information_schema.columns for cfg.Database
// (or cfg.Tables if non-empty), mapping MySQL column types:
// TINYINT(1) is Bool, any other TINYINT is Int{Width: 8}, and SET/ENUM
// columns are recognised by their data_type, with members split out of
// column_type's "set(...)"/"enum(...)" text.
func CollectSchema(ctx context.Context, db *sql.DB, cfg Config) (Schema, error) {
	query := `
		SELECT table_name, column_name, data_type, column_type
		FROM information_schema.columns
		WHERE table_schema = ?`
	args := []any{cfg.Database}
	if len(cfg.Tables) > 0 {
		placeholders := make([]string, len(cfg.Tables))
		for i, t := range cfg.Tables {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND table_name IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY table_name, ordinal_position"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect columns: %v", errs.ErrResource, err)
	}
	defer rows.Close()

	schema := make(Schema)
	for rows.Next() {
		var table, column, dataType, columnType string
		if err := rows.Scan(&table, &column, &dataType, &columnType); err != nil {
			return nil, fmt.Errorf("%w: scan column row: %v", errs.ErrResource, err)
		}

		ut, err := mysqlTypeToUniversal(dataType, columnType, cfg.booleanOverride(table, column), cfg.StrictSchema)
		if err != nil {
			return nil, err
		}
		if schema[table] == nil {
			schema[table] = make(map[string]types.UniversalType)
		}
		schema[table][column] = ut
	}
	return schema, rows.Err()
}

// PrimaryKeyColumns introspects every tracked table's declared primary key
// column(s), in ordinal position order, via information_schema. Used
// instead of guessing a primary key column by name.
func PrimaryKeyColumns(ctx context.Context, db *sql.DB, cfg Config) (map[string][]string, error) {
	query := `
		SELECT table_name, column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = 'PRIMARY'`
	args := []any{cfg.Database}
	if len(cfg.Tables) > 0 {
		placeholders := make([]string, len(cfg.Tables))
		for i, t := range cfg.Tables {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND table_name IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY table_name, ordinal_position"

	rows, err := db.QueryContext(ctx, query, args...)
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

// mysqlTypeToUniversal implements the column type mapping rules.
func mysqlTypeToUniversal(dataType, columnType string, booleanOverride, strict bool) (types.UniversalType, error) {
	dataType = strings.ToLower(dataType)
	columnType = strings.ToLower(columnType)

	if booleanOverride {
		return types.BoolType{}, nil
	}

	switch dataType {
	case "tinyint":
		if strings.Contains(columnType, "tinyint(1)") {
			return types.BoolType{}, nil
		}
		return types.IntType{Width: 8}, nil
	case "smallint":
		return types.IntType{Width: 16}, nil
	case "mediumint", "int":
		return types.IntType{Width: 32}, nil
	case "bigint":
		return types.IntType{Width: 64}, nil
	case "float":
		return types.FloatType{Width: 32}, nil
	case "double":
		return types.FloatType{Width: 64}, nil
	case "decimal", "numeric":
		p, s := parsePrecisionScale(columnType)
		return types.DecimalType{Precision: uint8(min(p, 38)), Scale: uint8(min(s, 38))}, nil
	case "char":
		return types.CharType{Length: parseLength(columnType)}, nil
	case "varchar":
		return types.VarcharType{Length: parseLength(columnType)}, nil
	case "text", "tinytext", "mediumtext", "longtext":
		return types.TextType{}, nil
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return types.BytesType{}, nil
	case "date":
		return types.DateType{}, nil
	case "time":
		return types.TimeType{}, nil
	case "datetime":
		return types.LocalDateTimeType{}, nil
	case "timestamp":
		return types.ZonedDateTimeType{}, nil
	case "json":
		return types.JSONBType{}, nil
	case "set":
		return types.SetType{Members: parseEnumMembers(columnType)}, nil
	case "enum":
		return types.EnumType{Members: parseEnumMembers(columnType)}, nil
	default:
		if strict {
			return nil, fmt.Errorf("%w: unmappable mysql type %q (%s)", errs.ErrSchemaMismatch, columnType, dataType)
		}
		log.WithSource("mysql").Warn().Str("column_type", columnType).Msg("unmappable type, downgrading to text")
		return types.TextType{}, nil
	}
}

// parseEnumMembers extracts the quoted member list from a column_type
// string like "set('tech','news','sports')" or "enum('a','b')".
func parseEnumMembers(columnType string) []string {
	open := strings.Index(columnType, "(")
	close := strings.LastIndex(columnType, ")")
	if open < 0 || close < 0 || close <= open {
		return nil
	}
	inner := columnType[open+1 : close]
	rawMembers := strings.Split(inner, ",")
	members := make([]string, 0, len(rawMembers))
	for _, m := range rawMembers {
		m = strings.TrimSpace(m)
		m = strings.Trim(m, "'")
		members = append(members, m)
	}
	return members
}

func parseLength(columnType string) int {
	open := strings.Index(columnType, "(")
	close := strings.Index(columnType, ")")
	if open < 0 || close < 0 || close <= open {
		return -1
	}
	n, err := strconv.Atoi(columnType[open+1 : close])
	if err != nil {
		return -1
	}
	return n
}

func parsePrecisionScale(columnType string) (int, int) {
	open := strings.Index(columnType, "(")
	close := strings.Index(columnType, ")")
	if open < 0 || close < 0 || close <= open {
		return 38, 0
	}
	parts := strings.Split(columnType[open+1:close], ",")
	p, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	s := 0
	if len(parts) > 1 {
		s, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return p, s
}

// SplitSetValue splits a comma-joined SET column value ("tech,news") into
// its member list.
func SplitSetValue(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
