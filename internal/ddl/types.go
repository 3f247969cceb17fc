package ddl

// ColumnDef describes a single column in a table definition produced or
// consumed by ddl.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., NVARCHAR(13), BIGINT, DATETIME2(0))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// IndexDef is a secondary, non-unique index.
type IndexDef struct {
	Name    string
	Columns []string
}

// TableDef holds the fully-qualified table name (FQN), an ordered list of
// columns and the secondary indexes to create with the table. The FQN is in
// dotted form (e.g., "dbo.ANEXO_1A_2025_1S") and is quoted by renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Indexes []IndexDef
}
