package ddl

import (
	"fmt"
	"strings"

	"satload/internal/schema"
)

// TypeMapper maps a schema column to a backend SQL type.
type TypeMapper func(schema.Column) string

// indexedColumns get a secondary index when the schema has them.
var indexedColumns = []string{"EmisorRFC"}

// FromSchema derives the destination table for s.
//
// Data columns keep header order and are nullable except the primary key. The
// position column is appended as a NOT NULL column of positionType. Indexes
// are created on the position column (watermark lookups) and on EmisorRFC
// when present.
func FromSchema(table string, s schema.Schema, mapType TypeMapper, positionType string) (TableDef, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return TableDef{}, fmt.Errorf("ddl: missing table")
	}
	if s.PositionColumn == "" {
		return TableDef{}, fmt.Errorf("ddl: schema has no position column")
	}

	def := TableDef{FQN: table, Columns: make([]ColumnDef, 0, len(s.Columns)+1)}
	for _, c := range s.Columns {
		def.Columns = append(def.Columns, ColumnDef{
			Name:       c.Name,
			SQLType:    mapType(c),
			Nullable:   !c.PrimaryKey,
			PrimaryKey: c.PrimaryKey,
		})
	}
	def.Columns = append(def.Columns, ColumnDef{
		Name:    s.PositionColumn,
		SQLType: positionType,
	})

	base := indexBase(table)
	def.Indexes = append(def.Indexes, IndexDef{
		Name:    "IX_" + base + "_POS",
		Columns: []string{s.PositionColumn},
	})
	for _, name := range indexedColumns {
		if i := s.Index(name); i >= 0 {
			def.Indexes = append(def.Indexes, IndexDef{
				Name:    "IX_" + base + "_" + strings.ToUpper(s.Columns[i].Name),
				Columns: []string{s.Columns[i].Name},
			})
		}
	}
	return def, nil
}

// indexBase is the unqualified table name, usable inside index names.
func indexBase(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		fqn = fqn[i+1:]
	}
	return strings.Trim(fqn, `[]"`+"`")
}
