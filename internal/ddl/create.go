// Package ddl defines a small, backend-agnostic model for SQL DDL, derives it
// from a load schema, and renders the dialect-neutral parts of CREATE TABLE.
//
// Backend packages (internal/storage/<kind>/ddl) supply identifier quoting
// and type mapping, and wrap the rendered column list in their own
// idempotent guard (IF NOT EXISTS, IF OBJECT_ID(...) IS NULL).
package ddl

import (
	"fmt"
	"strings"
)

// Quoter quotes one identifier segment.
type Quoter func(string) string

// Bare leaves identifiers as they are.
func Bare(s string) string { return s }

// RenderColumns validates t and renders its column definitions, followed by
// a PRIMARY KEY clause when any column is part of the key:
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
func RenderColumns(t TableDef, quote Quoter) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return cols, nil
}

// QuoteFQN quotes every dot-separated segment of name.
func QuoteFQN(name string, quote Quoter) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, quote(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders an unguarded CREATE TABLE statement with bare
// identifiers:
//
//	CREATE TABLE <FQN> (
//	  <col1-def>,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Indexes are not part of the statement; see BuildCreateIndexSQL.
func BuildCreateTableSQL(t TableDef) (string, error) {
	cols, err := RenderColumns(t, Bare)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);",
		strings.TrimSpace(t.FQN), strings.Join(cols, ",\n  ")), nil
}

// BuildCreateIndexSQL renders one CREATE INDEX per IndexDef. ifNotExists adds
// the guard understood by Postgres and SQLite.
func BuildCreateIndexSQL(t TableDef, quote Quoter, ifNotExists bool) []string {
	guard := ""
	if ifNotExists {
		guard = "IF NOT EXISTS "
	}
	out := make([]string, 0, len(t.Indexes))
	for _, ix := range t.Indexes {
		cols := make([]string, len(ix.Columns))
		for i, c := range ix.Columns {
			cols[i] = quote(c)
		}
		out = append(out, fmt.Sprintf("CREATE INDEX %s%s ON %s (%s);",
			guard, quote(ix.Name), QuoteFQN(t.FQN, quote), strings.Join(cols, ", ")))
	}
	return out
}
