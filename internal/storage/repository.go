// Package storage contains the storage-agnostic destination contract, the
// backend factory and the error classification shared by every backend.
//
// Backends (mssql, postgres, mysql, sqlite) register a Factory for their kind
// at init time; callers open a Repository with New and stay backend-agnostic
// from then on.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"satload/internal/record"
	"satload/internal/schema"
)

// InsertResult reports the outcome of one committed batch.
type InsertResult struct {
	Inserted   int64
	Duplicates int64 // rows skipped because their identifier already existed
}

// Repository is a destination table.
//
// InsertBatch writes rows in ONE transaction. Rows whose identifier is
// already present are skipped inside that transaction and counted as
// duplicates; any error rolls the whole batch back. Calling InsertBatch again
// with the same rows is therefore safe.
//
// MaxPosition returns the highest stored source position; ok is false when
// the table is empty. A missing table is reported as ErrTableMissing.
type Repository interface {
	MaxPosition(ctx context.Context) (max int64, ok bool, err error)
	InsertBatch(ctx context.Context, rows []record.Canonical) (InsertResult, error)
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config carries the backend-agnostic settings handed to a Factory.
type Config struct {
	Kind string
	DSN  string
	// Database, when set, overrides the database named in DSN. Backends
	// without a database namespace (sqlite) ignore it.
	Database string
	Table    string
	Schema   schema.Schema
}

// Columns returns the destination column order rows are written in.
func (c Config) Columns() []string { return c.Schema.DestColumns() }

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering a kind again
// replaces the previous factory.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
