package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no order is queued under the uid.
var ErrNotFound = errors.New("order not queued")

// StorageError reports a failure of the underlying storage engine.
//
// The queue contents are assumed intact when a StorageError is returned:
// every write runs in a transaction that is rolled back on failure.
type StorageError struct {
	// Op names the store operation that failed ("put", "remove", ...).
	Op string

	// Err is the driver-level cause.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the driver-level cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
