package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrTableMissing reports that the destination table does not exist yet.
	ErrTableMissing = errors.New("storage: destination table does not exist")

	// ErrTransient marks failures that may succeed when retried: timeouts,
	// dropped connections, deadlocks and lock waits.
	ErrTransient = errors.New("storage: transient failure")
)

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// MarkTransient wraps err so that errors.Is(err, ErrTransient) holds. It
// returns nil for nil.
func MarkTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying. Besides errors marked by
// a backend it recognises the driver-independent cases: deadline expiry, bad
// or reset connections and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
