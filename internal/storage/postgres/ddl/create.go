package ddl

import (
	"context"
	"fmt"
	"strings"

	gddl "satload/internal/ddl"
	"satload/internal/schema"
	"satload/internal/storage"
)

// FromSchema derives the Postgres table definition for s.
func FromSchema(table string, s schema.Schema) (gddl.TableDef, error) {
	return gddl.FromSchema(table, s, MapType, PositionType)
}

// BuildCreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement for t
// followed by one CREATE INDEX IF NOT EXISTS per index. Identifiers are
// double-quoted, so mixed-case SAT column names keep their case.
func BuildCreateTableSQL(t gddl.TableDef) ([]string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return nil, fmt.Errorf("postgres ddl: %w", err)
	}
	stmts := []string{fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	)}
	return append(stmts, gddl.BuildCreateIndexSQL(t, QuoteIdent, true)...), nil
}

// EnsureTable creates the target table for s if it does not already exist.
// It is idempotent and safe to call on every run.
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

// QuoteIdent safely quotes a single identifier segment for Postgres.
func QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteFQN quotes a possibly schema-qualified name like "public.anexo_1a" to
// "public"."anexo_1a".
func QuoteFQN(name string) string { return gddl.QuoteFQN(name, QuoteIdent) }
