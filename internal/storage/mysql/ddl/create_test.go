package ddl

import (
	"context"
	"testing"

	"satload/internal/schema"
	"satload/internal/storage"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"UUID", "EmisorRFC", "Descuento", "Observaciones"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	def, err := FromSchema("sat.ANEXO_3C_2025_1S", s)
	if err != nil {
		t.Fatalf("FromSchema: %v", err)
	}
	got, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}

	want := "CREATE TABLE IF NOT EXISTS `sat`.`ANEXO_3C_2025_1S` (\n" +
		"  `UUID` VARCHAR(36) NOT NULL,\n" +
		"  `EmisorRFC` VARCHAR(13),\n" +
		"  `Descuento` DECIMAL(18, 2),\n" +
		"  `Observaciones` LONGTEXT,\n" +
		"  `SOURCE_POSITION` BIGINT NOT NULL,\n" +
		"  PRIMARY KEY (`UUID`),\n" +
		"  INDEX `IX_ANEXO_3C_2025_1S_POS` (`SOURCE_POSITION`),\n" +
		"  INDEX `IX_ANEXO_3C_2025_1S_EMISORRFC` (`EmisorRFC`)\n" +
		") DEFAULT CHARSET=utf8mb4;"
	if got != want {
		t.Fatalf("BuildCreateTableSQL =\n%s\nwant:\n%s", got, want)
	}
}

type fakeRepository struct {
	storage.Repository
	sql []string
}

func (f *fakeRepository) Exec(_ context.Context, sql string) error {
	f.sql = append(f.sql, sql)
	return nil
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"UUID"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	repo := &fakeRepository{}
	if err := EnsureTable(context.Background(), repo, "ANEXO_1A", s); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.sql) != 1 {
		t.Fatalf("Exec calls = %d, want 1", len(repo.sql))
	}
	if err := EnsureTable(context.Background(), repo, " ", s); err == nil {
		t.Fatalf("EnsureTable with blank table: expected error")
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := QuoteIdent("we`ird"); got != "`we``ird`" {
		t.Fatalf("QuoteIdent = %s", got)
	}
}
