package engine

import (
	"errors"
	"fmt"
	"time"
)

// sessionBudget enforces a session's wall-clock deadline.
//
// The budget is checked before each new attempt and again after the pacing
// delay; an attempt already in flight is never cut short by it.
type sessionBudget struct {
	clock    Clock
	deadline time.Time
}

func newSessionBudget(clock Clock, started time.Time, limit time.Duration) *sessionBudget {
	return &sessionBudget{clock: clock, deadline: started.Add(limit)}
}

// Check returns a *DeadlineExceededError once the deadline has passed.
func (b *sessionBudget) Check(sessionID string, attempted int) error {
	now := b.clock.Now()
	if now.Before(b.deadline) {
		return nil
	}
	return &DeadlineExceededError{
		SessionID: sessionID,
		Deadline:  b.deadline,
		Attempted: attempted,
	}
}

// Deadline returns the session deadline.
func (b *sessionBudget) Deadline() time.Time {
	return b.deadline
}

// DeadlineExceededError reports that a session stopped at its deadline.
// It ends the session normally and is not returned to callers; the Report
// carries OutcomeDeadlineExceeded instead.
type DeadlineExceededError struct {
	SessionID string
	Deadline  time.Time
	Attempted int
}

// Error implements the error interface.
func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("session %s reached its deadline %s after %d attempts",
		e.SessionID, e.Deadline.Format(time.RFC3339), e.Attempted)
}

// IsDeadlineExceeded returns true if err is a *DeadlineExceededError.
func IsDeadlineExceeded(err error) bool {
	var de *DeadlineExceededError
	return errors.As(err, &de)
}
