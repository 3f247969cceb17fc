package ddl

import (
	"context"
	"fmt"
	"strings"

	gddl "satload/internal/ddl"
	"satload/internal/schema"
	"satload/internal/storage"
)

// DefaultSchema qualifies table names given without a schema.
const DefaultSchema = "dbo"

// FromSchema derives the SQL Server table definition for s. An unqualified
// table is placed in DefaultSchema.
func FromSchema(table string, s schema.Schema) (gddl.TableDef, error) {
	return gddl.FromSchema(Qualify(table), s, MapType, PositionType)
}

// Qualify prefixes DefaultSchema to a table name without a schema part.
func Qualify(table string) string {
	table = strings.TrimSpace(table)
	if table == "" || strings.Contains(table, ".") {
		return table
	}
	return DefaultSchema + "." + table
}

// BuildCreateTableSQL returns a T-SQL script that creates the table and its
// indexes when the table does not already exist:
//
//	IF OBJECT_ID(N'[schema].[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [schema].[table] (
//	    [col1] TYPE [NOT NULL],
//	    PRIMARY KEY ([pk])
//	  );
//	  CREATE INDEX [IX_...] ON [schema].[table] ([col]);
//	END;
//
// T-SQL has no CREATE TABLE IF NOT EXISTS, so the whole script is guarded.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("mssql ddl: %w", err)
	}
	fqn := gddl.QuoteFQN(t.FQN, QuoteIdent)

	var sb strings.Builder
	fmt.Fprintf(&sb, "IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n", strings.ReplaceAll(fqn, "'", "''"))
	fmt.Fprintf(&sb, "  CREATE TABLE %s (\n    %s\n  );\n", fqn, strings.Join(cols, ",\n    "))
	for _, ix := range gddl.BuildCreateIndexSQL(t, QuoteIdent, false) {
		sb.WriteString("  ")
		sb.WriteString(ix)
		sb.WriteByte('\n')
	}
	sb.WriteString("END;")
	return sb.String(), nil
}

// EnsureTable creates the target table for s if it does not already exist.
// The script is a single batch, so the table and its indexes appear together.
func EnsureTable(ctx context.Context, repo storage.Repository, table string, s schema.Schema) error {
	def, err := FromSchema(table, s)
	if err != nil {
		return err
	}
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}

// QuoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
