// Package mysql implements a MySQL repository on database/sql and
// go-sql-driver/mysql. A batch is written as multi-row INSERT ... ON
// DUPLICATE KEY UPDATE statements inside one transaction; the no-op update
// leaves existing rows untouched and reports zero affected rows for them.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	gddl "satload/internal/ddl"
	"satload/internal/record"
	"satload/internal/schema"
	"satload/internal/storage"
	myddl "satload/internal/storage/mysql/ddl"
)

// maxPlaceholders is the server's prepared statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN      string // go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/sat"
	Database string // overrides the DSN database when set
	Table    string
	Schema   schema.Schema
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config

	cols      []string
	chunkRows int
	maxSQL    string
}

// NewRepository opens a connection pool and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.Database != "" {
		mc.DBName = cfg.Database
	}
	mc.ParseTime = true
	mc.Loc = time.UTC

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", classify(err))
	}
	close := func() { _ = db.Close() }
	return New(db, cfg), close, nil
}

// New wraps an already-open database.
func New(db *sql.DB, cfg Config) *Repository {
	cols := cfg.Schema.DestColumns()
	chunk := 1000
	if len(cols) > 0 && chunk*len(cols) > maxPlaceholders {
		chunk = maxPlaceholders / len(cols)
	}
	return &Repository{
		db:        db,
		cfg:       cfg,
		cols:      cols,
		chunkRows: chunk,
		maxSQL: fmt.Sprintf("SELECT MAX(%s) FROM %s",
			myddl.QuoteIdent(cfg.Schema.PositionColumn), gddl.QuoteFQN(cfg.Table, myddl.QuoteIdent)),
	}
}

// insertSQL renders the INSERT for n rows.
func (r *Repository) insertSQL(n int) string {
	quoted := make([]string, len(r.cols))
	for i, c := range r.cols {
		quoted[i] = myddl.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(r.cols)), ", ") + ")"
	id := myddl.QuoteIdent(r.cfg.Schema.IDColumn)

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		gddl.QuoteFQN(r.cfg.Table, myddl.QuoteIdent), strings.Join(quoted, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	fmt.Fprintf(&sb, " ON DUPLICATE KEY UPDATE %s = %s", id, id)
	return sb.String()
}

// MaxPosition implements storage.Repository.
func (r *Repository) MaxPosition(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, r.maxSQL).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("max position: %w", classify(err))
	}
	return max.Int64, max.Valid, nil
}

// InsertBatch implements storage.Repository. Rows are sent in chunks that
// stay under the placeholder limit, all inside one transaction.
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

	for start := 0; start < len(rows); start += r.chunkRows {
		end := start + r.chunkRows
		if end > len(rows) {
			end = len(rows)
		}
		args, err := r.bind(rows[start:end])
		if err != nil {
			rollback()
			return storage.InsertResult{}, err
		}
		out, err := tx.ExecContext(ctx, r.insertSQL(end-start), args...)
		if err != nil {
			rollback()
			return storage.InsertResult{}, fmt.Errorf("insert rows %d-%d: %w", start, end-1, classify(err))
		}
		n, err := out.RowsAffected()
		if err != nil {
			rollback()
			return storage.InsertResult{}, fmt.Errorf("rows affected: %w", err)
		}
		res.Inserted += n
	}

	if err := tx.Commit(); err != nil {
		return storage.InsertResult{}, fmt.Errorf("commit: %w", classify(err))
	}
	res.Duplicates = int64(len(rows)) - res.Inserted
	return res, nil
}

// bind flattens rows into positional arguments.
func (r *Repository) bind(rows []record.Canonical) ([]any, error) {
	args := make([]any, 0, len(rows)*len(r.cols))
	for _, row := range rows {
		if len(row.Values) != len(r.cols)-1 {
			return nil, fmt.Errorf("position %d has %d values, want %d", row.Position, len(row.Values), len(r.cols)-1)
		}
		args = append(args, row.Values...)
		args = append(args, row.Position)
	}
	return args, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return classify(err)
	}
	return nil
}
