package ddl

import (
	"context"
	"errors"
	"testing"

	gddl "satload/internal/ddl"
	"satload/internal/schema"
	"satload/internal/storage"
)

func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"anexo", `"anexo"`},
		{"public.anexo", `"public"."anexo"`},
		{`we"ird.t`, `"we""ird"."t"`},
	}
	for _, tt := range tests {
		if got := QuoteFQN(tt.in); got != tt.want {
			t.Fatalf("QuoteFQN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		col  schema.Column
		want string
	}{
		{schema.Column{Kind: schema.KindText, MaxLen: 36}, "VARCHAR(36)"},
		{schema.Column{Kind: schema.KindText}, "TEXT"},
		{schema.Column{Kind: schema.KindDecimal, Scale: 4}, "NUMERIC(18, 4)"},
		{schema.Column{Kind: schema.KindDatetime}, "TIMESTAMP(0)"},
		{schema.Column{Kind: schema.KindInt}, "BIGINT"},
	}
	for _, tt := range tests {
		if got := MapType(tt.col); got != tt.want {
			t.Fatalf("MapType(%+v) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"UUID", "ReceptorRFC", "TipoCambio", "FechaPago"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	def, err := FromSchema("public.anexo_2b", s)
	if err != nil {
		t.Fatalf("FromSchema: %v", err)
	}
	stmts, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}

	want := "CREATE TABLE IF NOT EXISTS \"public\".\"anexo_2b\" (\n" +
		"  \"UUID\" VARCHAR(36) NOT NULL,\n" +
		"  \"ReceptorRFC\" VARCHAR(13),\n" +
		"  \"TipoCambio\" NUMERIC(18, 4),\n" +
		"  \"FechaPago\" TIMESTAMP(0),\n" +
		"  \"SOURCE_POSITION\" BIGINT NOT NULL,\n" +
		"  PRIMARY KEY (\"UUID\")\n);"
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want table + position index", len(stmts))
	}
	if stmts[0] != want {
		t.Fatalf("CREATE TABLE =\n%s\nwant:\n%s", stmts[0], want)
	}
	if wantIx := `CREATE INDEX IF NOT EXISTS "IX_anexo_2b_POS" ON "public"."anexo_2b" ("SOURCE_POSITION");`; stmts[1] != wantIx {
		t.Fatalf("index = %s, want %s", stmts[1], wantIx)
	}
}

func TestBuildCreateTableSQLErrors(t *testing.T) {
	t.Parallel()

	if _, err := BuildCreateTableSQL(gddl.TableDef{}); err == nil {
		t.Fatalf("empty FQN: expected error")
	}
	if _, err := BuildCreateTableSQL(gddl.TableDef{FQN: "t"}); err == nil {
		t.Fatalf("no columns: expected error")
	}
}

type fakeRepository struct {
	storage.Repository
	sql []string
	err error
}

func (f *fakeRepository) Exec(_ context.Context, sqlText string) error {
	f.sql = append(f.sql, sqlText)
	return f.err
}

func TestEnsureTableExecutesSQL(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"UUID", "EmisorRFC"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	repo := &fakeRepository{}
	if err := EnsureTable(context.Background(), repo, "anexo_1a", s); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.sql) != 3 {
		t.Fatalf("Exec calls = %d, want 3", len(repo.sql))
	}

	boom := errors.New("permission denied")
	failing := &fakeRepository{err: boom}
	if err := EnsureTable(context.Background(), failing, "anexo_1a", s); !errors.Is(err, boom) {
		t.Fatalf("EnsureTable error = %v, want %v", err, boom)
	}
}
