// Package ddl renders SQLite DDL for a load schema.
package ddl

import (
	"satload/internal/schema"
)

// PositionType is the SQLite type of the source position column.
const PositionType = "INTEGER"

// MapType maps a schema column to a SQLite type affinity. Datetimes are
// stored as ISO-8601 text by the driver; decimals keep NUMERIC affinity.
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindDecimal:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}
