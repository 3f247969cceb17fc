// Package mssql provides the SQL Server storage.Repository, the primary SAT
// destination. This adapter registers the backend under storage.Kind "mssql"
// so that cmd/satload obtains it through storage.New and only blank-imports
// the driver packages (see internal/storage/all).
//
// It also registers the SQL Server DDL bootstrapper, letting callers create
// the annex table with storage.EnsureTable without branching on the backend.
package mssql

import (
	"context"

	"satload/internal/schema"
	"satload/internal/storage"
	msddl "satload/internal/storage/mssql/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:      cfg.DSN,
			Database: cfg.Database,
			Table:    cfg.Table,
			Schema:   cfg.Schema,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql", func(ctx context.Context, repo storage.Repository, table string, s schema.Schema) error {
		return msddl.EnsureTable(ctx, repo, table, s)
	})
}

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
