// Package postgres implements a Postgres repository using pgx v5. A batch is
// COPYed into a transaction-scoped temporary table and moved into the target
// with INSERT ... ON CONFLICT DO NOTHING, inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"satload/internal/record"
	"satload/internal/schema"
	"satload/internal/storage"
	pgddl "satload/internal/storage/postgres/ddl"
)

const stageTable = "satload_stage"

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string // connection string for pgxpool
	Database string // overrides the DSN database when set
	Table    string // target table, e.g. "public.anexo_1a_2025_1s"
	Schema   schema.Schema
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config

	cols     []string
	decimals []bool // per destination column
	maxSQL   string
	stageSQL string
	mergeSQL string
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	if cfg.Database != "" {
		pc.ConnConfig.Database = cfg.Database
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", classify(err))
	}
	close := func() { pool.Close() }
	return New(pool, cfg), close, nil
}

// New wraps an existing pool and precomputes the batch statements.
func New(pool *pgxpool.Pool, cfg Config) *Repository {
	cols := cfg.Schema.DestColumns()
	decimals := make([]bool, len(cols))
	for i, c := range cfg.Schema.Columns {
		decimals[i] = c.Kind == schema.KindDecimal
	}
	quoted := strings.Join(mapIdent(cols), ", ")
	table := pgddl.QuoteFQN(cfg.Table)

	return &Repository{
		pool:     pool,
		cfg:      cfg,
		cols:     cols,
		decimals: decimals,
		maxSQL: fmt.Sprintf("SELECT MAX(%s) FROM %s",
			pgddl.QuoteIdent(cfg.Schema.PositionColumn), table),
		stageSQL: fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s) ON COMMIT DROP",
			pgddl.QuoteIdent(stageTable), table),
		mergeSQL: fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
			table, quoted, quoted, pgddl.QuoteIdent(stageTable), pgddl.QuoteIdent(cfg.Schema.IDColumn)),
	}
}

// MaxPosition implements storage.Repository.
func (r *Repository) MaxPosition(ctx context.Context) (int64, bool, error) {
	var max pgtype.Int8
	if err := r.pool.QueryRow(ctx, r.maxSQL).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("max position: %w", classify(err))
	}
	return max.Int64, max.Valid, nil
}

// InsertBatch implements storage.Repository:
//
//  1. CREATE TEMP TABLE ... (LIKE target) ON COMMIT DROP
//  2. COPY the rows into it
//  3. INSERT ... SELECT ... ON CONFLICT (id) DO NOTHING
//
// The command tag of step 3 counts only the rows actually inserted.
func (r *Repository) InsertBatch(ctx context.Context, rows []record.Canonical) (storage.InsertResult, error) {
	var res storage.InsertResult
	if len(rows) == 0 {
		return res, nil
	}
	src, err := r.copyRows(rows)
	if err != nil {
		return res, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, r.stageSQL); err != nil {
		return res, fmt.Errorf("create stage: %w", classify(err))
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stageTable}, r.cols, pgx.CopyFromRows(src)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return res, fmt.Errorf("copy into stage: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), classify(err))
		}
		return res, fmt.Errorf("copy into stage: %w", classify(err))
	}
	tag, err := tx.Exec(ctx, r.mergeSQL)
	if err != nil {
		return res, fmt.Errorf("merge stage: %w", classify(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", classify(err))
	}

	res.Inserted = tag.RowsAffected()
	res.Duplicates = int64(len(rows)) - res.Inserted
	return res, nil
}

// copyRows lays rows out in destination column order. COPY uses the binary
// protocol, so canonical decimal strings are converted to pgtype.Numeric.
func (r *Repository) copyRows(rows []record.Canonical) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, row := range rows {
		if len(row.Values) != len(r.cols)-1 {
			return nil, fmt.Errorf("position %d has %d values, want %d", row.Position, len(row.Values), len(r.cols)-1)
		}
		vals := make([]any, len(r.cols))
		for j, v := range row.Values {
			s, ok := v.(string)
			if !ok || !r.decimals[j] {
				vals[j] = v
				continue
			}
			var n pgtype.Numeric
			if err := n.Scan(s); err != nil {
				return nil, fmt.Errorf("position %d column %s: %w", row.Position, r.cols[j], err)
			}
			vals[j] = n
		}
		vals[len(vals)-1] = row.Position
		out[i] = vals
	}
	return out, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return classify(err)
	}
	return nil
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgddl.QuoteIdent(c)
	}
	return out
}
