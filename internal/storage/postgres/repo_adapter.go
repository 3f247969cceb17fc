// Package postgres provides a Postgres-backed storage.Repository implementation.
// This adapter wires the backend into the storage-agnostic factory at init
// time. cmd/satload and the tests then obtain a Repository through
// storage.New(...) without importing this package directly.
//
// The adapter also reconciles the concrete *postgres.Repository with the
// storage.Repository interface, and registers a DDL bootstrapper so that
// callers can create the destination table based only on storage.Kind.
package postgres

import (
	"context"
	"fmt"

	"satload/internal/schema"
	"satload/internal/storage"
	pgddl "satload/internal/storage/postgres/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, table string, s schema.Schema) error {
		if err := pgddl.EnsureTable(ctx, repo, table, s); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	})
}
