package ddl

import (
	"context"
	"fmt"
	"strings"

	gddl "satload/internal/ddl"
	"satload/internal/schema"
	"satload/internal/storage"
)

// FromSchema derives the SQLite table definition for s.
func FromSchema(table string, s schema.Schema) (gddl.TableDef, error) {
	return gddl.FromSchema(table, s, MapType, PositionType)
}

// BuildCreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for t
// followed by one CREATE INDEX IF NOT EXISTS per index.
func BuildCreateTableSQL(t gddl.TableDef) ([]string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return nil, fmt.Errorf("sqlite ddl: %w", err)
	}
	stmts := []string{fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		gddl.QuoteFQN(t.FQN, QuoteIdent),
		strings.Join(cols, ",\n  "),
	)}
	return append(stmts, gddl.BuildCreateIndexSQL(t, QuoteIdent, true)...), nil
}

// EnsureTable creates the table for s when it does not exist.
func EnsureTable(ctx context.Context, repo storage.Repository, table string, s schema.Schema) error {
	def, err := FromSchema(table, s)
	if err != nil {
		return err
	}
	stmts, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := repo.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// QuoteIdent quotes a SQLite identifier with double quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
