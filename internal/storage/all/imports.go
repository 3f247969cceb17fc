// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL bootstrappers with the
// storage package. The following kinds become available:
//
//   - "mssql"    (satload/internal/storage/mssql)
//   - "postgres" (satload/internal/storage/postgres)
//   - "mysql"    (satload/internal/storage/mysql)
//   - "sqlite"   (satload/internal/storage/sqlite)
//
// Typical usage (in cmd/satload or a similar wiring layer):
//
//	import _ "satload/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind:     p.Storage.Kind,
//	    DSN:      p.Storage.DB.DSN,
//	    Database: entry.Database,
//	    Table:    entry.Table,
//	    Schema:   s,
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//
//	if p.Storage.DB.AutoCreateTable {
//	    if err := storage.EnsureTable(ctx, cfg, repo); err != nil {
//	        // handle DDL error
//	    }
//	}
//
// A binary that supports only a subset of backends can blank-import the
// backend packages it needs instead of this package.
package all

import (
	_ "satload/internal/storage/mssql"
	_ "satload/internal/storage/mysql"
	_ "satload/internal/storage/postgres"
	_ "satload/internal/storage/sqlite"
)
