// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Each batch is bulk-copied into a session-scoped
// temporary table (#stage) and moved into the target with an INSERT that
// skips identifiers already present, all inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	gddl "satload/internal/ddl"
	"satload/internal/record"
	"satload/internal/schema"
	"satload/internal/storage"
	msddl "satload/internal/storage/mssql/ddl"
)

// stageTable is the per-session staging table. Temporary tables are scoped
// to the connection, so concurrent sessions never collide.
const stageTable = "#satload_stage"

// Config holds MSSQL repository configuration.
type Config struct {
	DSN      string
	Database string // overrides the DSN database when set
	Table    string // target table; unqualified names go to dbo
	Schema   schema.Schema
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config

	cols      []string
	maxSQL    string
	stageSQL  string
	mergeSQL  string
	dropStage string
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := msdsn.Parse(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.Database != "" {
		dsn.Database = cfg.Database
	}
	db := sql.OpenDB(mssql.NewConnectorConfig(dsn))
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", classify(err))
	}
	close := func() { _ = db.Close() }
	return New(db, cfg), close, nil
}

// New wraps an already-open database and precomputes the batch statements.
func New(db *sql.DB, cfg Config) *Repository {
	cols := cfg.Schema.DestColumns()
	quoted := strings.Join(mapIdent(cols), ", ")
	table := msFQN(msddl.Qualify(cfg.Table))
	id := msIdent(cfg.Schema.IDColumn)

	return &Repository{
		db:   db,
		cfg:  cfg,
		cols: cols,
		maxSQL: fmt.Sprintf("SELECT MAX(%s) FROM %s",
			msIdent(cfg.Schema.PositionColumn), table),
		dropStage: fmt.Sprintf("IF OBJECT_ID('tempdb..%s') IS NOT NULL DROP TABLE %s;",
			stageTable, stageTable),
		stageSQL: fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s;",
			quoted, stageTable, table),
		mergeSQL: fmt.Sprintf(
			`INSERT INTO %[1]s (%[2]s)
SELECT %[2]s FROM %[3]s AS S
WHERE NOT EXISTS (
  SELECT 1 FROM %[1]s AS T WITH (UPDLOCK, HOLDLOCK) WHERE T.%[4]s = S.%[4]s
);`,
			table, quoted, stageTable, id),
	}
}

// MaxPosition implements storage.Repository.
func (r *Repository) MaxPosition(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, r.maxSQL).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("max position: %w", classify(err))
	}
	return max.Int64, max.Valid, nil
}

// InsertBatch implements storage.Repository with a stage-and-merge inside
// one transaction:
//
//  1. SELECT TOP 0 ... INTO #stage copies the target's column types.
//  2. Bulk copy the rows into #stage.
//  3. INSERT ... WHERE NOT EXISTS moves the new identifiers into the target.
//
// The caller collapses duplicate identifiers within a batch.
func (r *Repository) InsertBatch(ctx context.Context, rows []record.Canonical) (storage.InsertResult, error) {
	var res storage.InsertResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", classify(err))
	}
	rollback := func() { _ = tx.Rollback() }

	for _, q := range []string{r.dropStage, r.stageSQL} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			rollback()
			return res, fmt.Errorf("create stage: %w", classify(err))
		}
	}

	if err := r.copyIn(ctx, tx, rows); err != nil {
		rollback()
		return res, err
	}

	out, err := tx.ExecContext(ctx, r.mergeSQL)
	if err != nil {
		rollback()
		return res, fmt.Errorf("merge stage: %w", classify(err))
	}
	if res.Inserted, err = out.RowsAffected(); err != nil {
		rollback()
		return storage.InsertResult{}, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.dropStage); err != nil {
		rollback()
		return storage.InsertResult{}, fmt.Errorf("drop stage: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return storage.InsertResult{}, fmt.Errorf("commit: %w", classify(err))
	}
	res.Duplicates = int64(len(rows)) - res.Inserted
	return res, nil
}

// copyIn bulk-copies rows into the stage table on tx.
func (r *Repository) copyIn(ctx context.Context, tx *sql.Tx, rows []record.Canonical) error {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(stageTable, mssql.BulkOptions{}, r.cols...))
	if err != nil {
		return fmt.Errorf("prepare bulk: %w", classify(err))
	}

	args := make([]any, len(r.cols))
	for i, row := range rows {
		if err := bindRow(args, row); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("bulk row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("bulk row %d: %w", i, classify(err))
		}
	}
	_, err = stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("bulk finalize: %w", classify(err))
	}
	return nil
}

// bindRow fills args with the row's values followed by its position.
// Decimals travel as canonical strings; the bulk copy encoder converts them
// at the column's scale.
func bindRow(args []any, row record.Canonical) error {
	if len(row.Values) != len(args)-1 {
		return fmt.Errorf("position %d has %d values, want %d", row.Position, len(row.Values), len(args)-1)
	}
	copy(args, row.Values)
	args[len(args)-1] = row.Position
	return nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return classify(err)
	}
	return nil
}

func msIdent(id string) string { return msddl.QuoteIdent(id) }

// msFQN quotes a possibly schema-qualified name like "dbo.ANEXO_1A" to
// "[dbo].[ANEXO_1A]".
func msFQN(name string) string { return gddl.QuoteFQN(name, msddl.QuoteIdent) }

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
