// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import (
	"fmt"

	"satload/internal/schema"
)

// PositionType is the Postgres type of the source position column.
const PositionType = "BIGINT"

// MapType maps a schema column into a Postgres SQL type.
//
//	text      VARCHAR(n), or TEXT when unbounded
//	decimal   NUMERIC(18, scale)
//	datetime  TIMESTAMP(0)
//	int       BIGINT
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d, %d)", schema.DecimalPrecision, c.Scale)
	case schema.KindDatetime:
		return "TIMESTAMP(0)"
	case schema.KindInt:
		return "BIGINT"
	default:
		if c.MaxLen > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.MaxLen)
		}
		return "TEXT"
	}
}
