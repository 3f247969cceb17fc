// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. A batch is one transaction of
// prepared INSERT ... ON CONFLICT DO NOTHING statements; SQLite has no bulk
// load API, but a single transaction keeps throughput acceptable.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gddl "satload/internal/ddl"
	"satload/internal/record"
	"satload/internal/storage"
	sqliteddl "satload/internal/storage/sqlite/ddl"

	_ "modernc.org/sqlite"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config

	insertSQL string
	maxSQL    string
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("sqlite: table must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")

	r := New(db, cfg)
	return r, func() { db.Close() }, nil
}

// New wraps an already-open database.
func New(db *sql.DB, cfg Config) *Repository {
	q := sqliteddl.QuoteIdent
	cols := cfg.Schema.DestColumns()
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q(c)
		marks[i] = "?"
	}
	table := gddl.QuoteFQN(cfg.Table, q)
	return &Repository{
		db:  db,
		cfg: cfg,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
			table, strings.Join(quoted, ", "), strings.Join(marks, ", "), q(cfg.Schema.IDColumn)),
		maxSQL: fmt.Sprintf("SELECT MAX(%s) FROM %s", q(cfg.Schema.PositionColumn), table),
	}
}

// MaxPosition implements storage.Repository.
func (r *Repository) MaxPosition(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, r.maxSQL).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("sqlite: max position: %w", classify(err))
	}
	return max.Int64, max.Valid, nil
}

// InsertBatch implements storage.Repository.
func (r *Repository) InsertBatch(ctx context.Context, rows []record.Canonical) (storage.InsertResult, error) {
	var res storage.InsertResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite: begin tx: %w", classify(err))
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, r.insertSQL)
	if err != nil {
		rollback()
		return res, fmt.Errorf("sqlite: prepare insert: %w", classify(err))
	}
	defer stmt.Close()

	args := make([]any, len(r.cfg.Schema.Columns)+1)
	for i, row := range rows {
		if len(row.Values) != len(args)-1 {
			rollback()
			return storage.InsertResult{}, fmt.Errorf("sqlite: row %d has %d values, want %d", i, len(row.Values), len(args)-1)
		}
		copy(args, row.Values)
		args[len(args)-1] = row.Position

		out, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			rollback()
			return storage.InsertResult{}, fmt.Errorf("sqlite: insert position %d: %w", row.Position, classify(err))
		}
		n, err := out.RowsAffected()
		if err != nil {
			rollback()
			return storage.InsertResult{}, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		res.Inserted += n
	}

	if err := tx.Commit(); err != nil {
		return storage.InsertResult{}, fmt.Errorf("sqlite: commit: %w", classify(err))
	}
	res.Duplicates = int64(len(rows)) - res.Inserted
	return res, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", classify(err))
	}
	return nil
}
