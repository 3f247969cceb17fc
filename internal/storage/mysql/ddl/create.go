package ddl

import (
	"context"
	"fmt"
	"strings"

	gddl "satload/internal/ddl"
	"satload/internal/schema"
	"satload/internal/storage"
)

// FromSchema derives the MySQL table definition for s.
func FromSchema(table string, s schema.Schema) (gddl.TableDef, error) {
	return gddl.FromSchema(table, s, MapType, PositionType)
}

// BuildCreateTableSQL returns one CREATE TABLE IF NOT EXISTS statement with
// the indexes declared inline, since MySQL has no CREATE INDEX IF NOT EXISTS.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("mysql ddl: %w", err)
	}
	for _, ix := range t.Indexes {
		quoted := make([]string, len(ix.Columns))
		for i, c := range ix.Columns {
			quoted[i] = QuoteIdent(c)
		}
		cols = append(cols, fmt.Sprintf("INDEX %s (%s)", QuoteIdent(ix.Name), strings.Join(quoted, ", ")))
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n) DEFAULT CHARSET=utf8mb4;",
		gddl.QuoteFQN(t.FQN, QuoteIdent),
		strings.Join(cols, ",\n  "),
	), nil
}

// EnsureTable creates the target table for s if it does not already exist.
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

// QuoteIdent quotes a MySQL identifier with backticks.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
