package mysql

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"satload/internal/storage"
)

const (
	errNoSuchTable     = 1146
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// classify maps driver errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return storage.MarkTransient(err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errNoSuchTable:
			return fmt.Errorf("%w: %v", storage.ErrTableMissing, err)
		case errLockWaitTimeout, errLockDeadlock:
			return storage.MarkTransient(err)
		}
	}
	return err
}
