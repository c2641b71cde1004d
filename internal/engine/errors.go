package engine

import (
	"errors"
	"fmt"
)

// SessionErrorCode categorizes session failures.
type SessionErrorCode string

const (
	// ErrCodeStorage indicates the local queue could not be read or written.
	ErrCodeStorage SessionErrorCode = "STORAGE"

	// ErrCodeFatal indicates a submission failure that is neither a network
	// failure nor a rejection.
	ErrCodeFatal SessionErrorCode = "FATAL"

	// ErrCodeCancelled indicates the engine was closed mid-session.
	ErrCodeCancelled SessionErrorCode = "CANCELLED"
)

// SessionError is returned by TriggerSync when a session ends abnormally.
// Network failures, deadlines and rejections are not errors; they are
// reported through Report.Outcome.
type SessionError struct {
	Code      SessionErrorCode
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: sync session %s: %v", e.Code, e.SessionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is a session storage failure.
// Uses errors.As to handle wrapped errors.
func IsStorageError(err error) bool {
	return hasCode(err, ErrCodeStorage)
}

// IsFatal returns true if err is a fatal session failure.
func IsFatal(err error) bool {
	return hasCode(err, ErrCodeFatal)
}

// IsCancelled returns true if err is a cancelled session.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

func hasCode(err error, code SessionErrorCode) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
