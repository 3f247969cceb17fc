package storage

import (
	"context"
	"fmt"
	"sync"

	"satload/internal/schema"
)

// DDLBootstrapper is a backend-specific function that derives the destination
// table from the run schema and applies an idempotent CREATE TABLE (plus its
// indexes) via repo.Exec.
//
// Backends register their implementation for a storage kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string, s schema.Schema) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates cfg.Table on the already-open repo when it does not
// exist. It is safe to call on every run.
func EnsureTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", cfg.Kind)
	}
	if err := fn(ctx, repo, cfg.Table, cfg.Schema); err != nil {
		return fmt.Errorf("ensure table %s: %w", cfg.Table, err)
	}
	return nil
}
