// Package ddl renders MySQL DDL for a load schema.
package ddl

import (
	"fmt"

	"satload/internal/schema"
)

// PositionType is the MySQL type of the source position column.
const PositionType = "BIGINT"

// MapType maps a schema column into a MySQL column type. Unbounded text is
// LONGTEXT; bounded text keeps its business length.
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", schema.DecimalPrecision, c.Scale)
	case schema.KindDatetime:
		return "DATETIME(0)"
	case schema.KindInt:
		return "BIGINT"
	default:
		if c.MaxLen > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.MaxLen)
		}
		return "LONGTEXT"
	}
}
