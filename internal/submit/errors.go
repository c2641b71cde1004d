package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/roach88/posync/internal/order"
)

// ErrNetworkUnavailable marks failures where the remote endpoint could not be
// reached or the connection dropped mid-call. It is the only failure kind
// that makes callers persist orders and retry later.
//
// Match with errors.Is; the concrete error keeps the transport cause.
var ErrNetworkUnavailable = errors.New("network unavailable")

// networkError wraps a transport failure classified as network-unavailable.
type networkError struct {
	cause error
}

func (e *networkError) Error() string {
	return fmt.Sprintf("%s: %v", ErrNetworkUnavailable, e.cause)
}

func (e *networkError) Is(target error) bool {
	return target == ErrNetworkUnavailable
}

func (e *networkError) Unwrap() error {
	return e.cause
}

// Unavailable wraps cause as a network-unavailable failure.
func Unavailable(cause error) error {
	if cause == nil {
		return ErrNetworkUnavailable
	}
	if errors.Is(cause, ErrNetworkUnavailable) {
		return cause
	}
	return &networkError{cause: cause}
}

// RejectedError reports orders the remote system explicitly refused
// (validation, business rules). Rejected orders are not retried blindly.
type RejectedError struct {
	// UIDs lists the rejected orders.
	UIDs []order.UID

	// Reasons maps a rejected uid to the remote's explanation, when given.
	Reasons map[order.UID]string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	parts := make([]string, 0, len(e.UIDs))
	for _, uid := range e.UIDs {
		if reason := e.Reasons[uid]; reason != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", uid, reason))
			continue
		}
		parts = append(parts, string(uid))
	}
	return fmt.Sprintf("rejected by remote: %s", strings.Join(parts, ", "))
}

// UnacknowledgedError reports orders the remote answered for without listing
// them as accepted or refused. Their fate is unknown, so they stay queued.
type UnacknowledgedError struct {
	UIDs []order.UID
}

// Error implements the error interface.
func (e *UnacknowledgedError) Error() string {
	parts := make([]string, len(e.UIDs))
	for i, uid := range e.UIDs {
		parts[i] = string(uid)
	}
	return fmt.Sprintf("not acknowledged by remote: %s", strings.Join(parts, ", "))
}

// IsUnacknowledged returns true if err is or wraps an *UnacknowledgedError.
func IsUnacknowledged(err error) bool {
	var ue *UnacknowledgedError
	return errors.As(err, &ue)
}

// IsNetworkUnavailable returns true if err is a network-unavailable failure.
func IsNetworkUnavailable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// IsRejected returns true if err is or wraps a *RejectedError.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// AsRejected extracts the *RejectedError from err, if any.
func AsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Classify maps a raw transport error onto the submission taxonomy.
//
// Connection-level failures (refused, reset, unreachable, dropped mid-body,
// timeouts) become network-unavailable. Rejections pass through. Caller
// cancellation and anything unrecognised are returned unchanged and are
// fatal for the attempt.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNetworkUnavailable), IsRejected(err):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return Unavailable(err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Unavailable(err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.EPIPE):
		return Unavailable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Unavailable(err)
	}
	return err
}
