// Package sqlite wires the SQLite backend into the storage factory under
// storage.Kind "sqlite". Callers get a storage.Repository from storage.New
// without importing this package; registration happens in init, together
// with the DDL bootstrapper used by storage.EnsureTable.
package sqlite

import (
	"context"

	"satload/internal/schema"
	"satload/internal/storage"
	sqliteddl "satload/internal/storage/sqlite/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Repository interface,
// adding a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:    cfg.DSN,
			Table:  cfg.Table,
			Schema: cfg.Schema,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, table string, s schema.Schema) error {
		return sqliteddl.EnsureTable(ctx, repo, table, s)
	})
}
