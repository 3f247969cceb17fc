package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"satload/internal/storage"
)

// classify maps driver errors onto the storage error taxonomy. BUSY and
// LOCKED (including their extended codes) are transient; a missing table is
// storage.ErrTableMissing.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return storage.MarkTransient(err)
		}
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", storage.ErrTableMissing, err)
	}
	return err
}
