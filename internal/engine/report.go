package engine

import (
	"time"

	"github.com/roach88/posync/internal/order"
)

// Outcome is how a session ended.
type Outcome string

const (
	// OutcomeEmpty means the queue was empty when the session started.
	OutcomeEmpty Outcome = "empty"
	// OutcomeDrained means every order the session saw was accepted.
	OutcomeDrained Outcome = "drained"
	// OutcomeNetworkUnavailable means an attempt could not reach the remote.
	OutcomeNetworkUnavailable Outcome = "network-unavailable"
	// OutcomeDeadlineExceeded means the session ran out of time.
	OutcomeDeadlineExceeded Outcome = "deadline-exceeded"
	// OutcomeRejected means the session finished but the remote refused orders.
	OutcomeRejected Outcome = "rejected"
	// OutcomeCancelled means the engine was closed mid-session.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed means a storage or fatal submission error ended the session.
	OutcomeFailed Outcome = "failed"
)

// Status is the user-visible summary of a Report.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Report summarizes one sync session.
type Report struct {
	SessionID string      `json:"session_id"`
	Started   time.Time   `json:"started"`
	Finished  time.Time   `json:"finished"`
	Attempted int         `json:"attempted"`
	Succeeded int         `json:"succeeded"`
	Rejected  []order.UID `json:"rejected"`

	// Remaining is the queue length when the session ended.
	Remaining int     `json:"remaining"`
	Outcome   Outcome `json:"outcome"`

	// Shared is set when the caller joined a session another caller started.
	Shared bool `json:"shared"`
}

// Status maps the outcome onto success, partial or failure.
func (r Report) Status() Status {
	switch r.Outcome {
	case OutcomeEmpty, OutcomeDrained:
		if r.Remaining == 0 {
			return StatusSuccess
		}
		return StatusPartial
	case OutcomeCancelled, OutcomeFailed:
		return StatusFailure
	default:
		if r.Succeeded > 0 {
			return StatusPartial
		}
		return StatusFailure
	}
}

// Duration returns how long the session ran.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
