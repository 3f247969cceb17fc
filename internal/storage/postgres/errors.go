package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"satload/internal/storage"
)

const undefinedTable = "42P01"

// transientStates are SQLSTATEs worth retrying: serialization failure,
// deadlock, lock timeout, shutdown and connection exhaustion. Class 08
// (connection exception) is handled separately.
var transientStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"57P01": true,
	"57P03": true,
	"53300": true,
}

// classify maps pgx errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == undefinedTable:
			return fmt.Errorf("%w: %v", storage.ErrTableMissing, err)
		case transientStates[pgErr.Code], strings.HasPrefix(pgErr.Code, "08"):
			return storage.MarkTransient(err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return storage.MarkTransient(err)
	}
	return err
}
