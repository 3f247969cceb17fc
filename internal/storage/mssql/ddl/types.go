// Package ddl renders SQL Server DDL for a load schema.
package ddl

import (
	"fmt"

	"satload/internal/schema"
)

// PositionType is the SQL Server type of the source position column.
const PositionType = "BIGINT"

// MapType maps a schema column into a SQL Server column type.
//
//	text      NVARCHAR(n), or NVARCHAR(MAX) when unbounded
//	decimal   DECIMAL(18, scale)
//	datetime  DATETIME2(0)
//	int       BIGINT
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", schema.DecimalPrecision, c.Scale)
	case schema.KindDatetime:
		return "DATETIME2(0)"
	case schema.KindInt:
		return "BIGINT"
	default:
		if c.MaxLen > 0 {
			return fmt.Sprintf("NVARCHAR(%d)", c.MaxLen)
		}
		return "NVARCHAR(MAX)"
	}
}
