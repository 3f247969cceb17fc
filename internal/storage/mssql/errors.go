package mssql

import (
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"satload/internal/storage"
)

// errInvalidObject is raised for a reference to a table that does not exist.
const errInvalidObject = 208

// transientNumbers are SQL Server error numbers worth retrying: deadlock
// victim, lock request timeout, client timeout, dropped transport and the
// Azure SQL throttling and failover family.
var transientNumbers = map[int32]bool{
	-2:    true,
	233:   true,
	1205:  true,
	1222:  true,
	10053: true,
	10054: true,
	10060: true,
	40197: true,
	40501: true,
	40613: true,
	49918: true,
	49919: true,
	49920: true,
}

// classify maps driver errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me mssql.Error
	if !errors.As(err, &me) {
		return err
	}
	switch {
	case me.Number == errInvalidObject:
		return fmt.Errorf("%w: %v", storage.ErrTableMissing, err)
	case transientNumbers[me.Number]:
		return storage.MarkTransient(err)
	}
	return err
}
