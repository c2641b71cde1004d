package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/submit"
)

// session is the state of one drain of the queue.
type session struct {
	id     string
	logger *slog.Logger
	budget *sessionBudget
	report Report

	// tried holds every uid attempted in this session; none is attempted twice.
	tried map[order.UID]bool
}

// runSession drains the queue. Called only through the singleflight group.
func (e *Engine) runSession(ctx context.Context) (Report, error) {
	finished, ok := e.beginSession()
	if !ok {
		return Report{Outcome: OutcomeCancelled}, &SessionError{Code: ErrCodeCancelled, Err: context.Canceled}
	}
	defer close(finished)

	e.cancelRetry()
	e.setState(StateSyncing)

	started := e.clock.Now()
	s := &session{
		id:     string(e.ids.Generate()),
		budget: newSessionBudget(e.clock, started, e.deadline),
		tried:  make(map[order.UID]bool),
	}
	s.logger = e.logger.With("session", s.id)
	s.report = Report{SessionID: s.id, Started: started, Rejected: []order.UID{}}

	s.logger.Debug("sync session started", "deadline", s.budget.Deadline())

	outcome, err := e.drain(ctx, s)
	return e.finish(ctx, s, outcome, err)
}

// drain attempts orders until the queue is exhausted or the session aborts.
func (e *Engine) drain(ctx context.Context, s *session) (Outcome, error) {
	snapshot, err := e.queue.All(ctx)
	if err != nil {
		return OutcomeFailed, newSessionError(s, ErrCodeStorage, fmt.Errorf("read queue: %w", err))
	}
	if len(snapshot) == 0 {
		return OutcomeEmpty, nil
	}

	for {
		for _, o := range snapshot {
			if s.tried[o.UID] {
				continue
			}
			outcome, stop, err := e.attempt(ctx, s, o)
			if stop {
				return outcome, err
			}
		}

		if err := ctx.Err(); err != nil {
			return OutcomeCancelled, newSessionError(s, ErrCodeCancelled, err)
		}

		// Pick up orders queued while this snapshot was being drained
		next, err := e.queue.All(ctx)
		if err != nil {
			return OutcomeFailed, newSessionError(s, ErrCodeStorage, fmt.Errorf("re-read queue: %w", err))
		}
		snapshot = snapshot[:0]
		for _, o := range next {
			if !s.tried[o.UID] {
				snapshot = append(snapshot, o)
			}
		}
		if len(snapshot) == 0 {
			break
		}
		s.logger.Debug("draining orders queued during session", "orders", len(snapshot))
	}

	if len(s.report.Rejected) > 0 {
		return OutcomeRejected, nil
	}
	return OutcomeDrained, nil
}

// attempt submits one order. stop reports whether the session must end.
func (e *Engine) attempt(ctx context.Context, s *session, o order.PendingOrder) (Outcome, bool, error) {
	if err := s.budget.Check(s.id, s.report.Attempted); err != nil {
		s.logger.Info("sync session deadline reached", "attempted", s.report.Attempted)
		return OutcomeDeadlineExceeded, true, nil
	}

	s.tried[o.UID] = true
	e.host.RegisterOrder(o)

	if err := e.clock.Sleep(ctx, e.pace); err != nil {
		e.host.ForgetOrder(o.UID)
		return OutcomeCancelled, true, newSessionError(s, ErrCodeCancelled, err)
	}
	// The deadline may have passed while pacing
	if err := s.budget.Check(s.id, s.report.Attempted); err != nil {
		e.host.ForgetOrder(o.UID)
		s.logger.Info("sync session deadline reached", "attempted", s.report.Attempted)
		return OutcomeDeadlineExceeded, true, nil
	}

	s.report.Attempted++
	res, err := e.submitter.Submit(ctx, []order.PendingOrder{o}, submit.Options{
		Timeout: e.submitTimeout,
		Silent:  true,
	})

	switch {
	case err == nil && res.Successful.Has(o.UID):
		e.host.ForgetOrder(o.UID)
		// The remote has the order; record that even if Close raced the call
		if err := e.queue.Remove(context.WithoutCancel(ctx), o.UID); err != nil {
			return OutcomeFailed, true, newSessionError(s, ErrCodeStorage, fmt.Errorf("remove %s: %w", o.UID, err))
		}
		s.report.Succeeded++
		s.logger.Debug("order synced", "uid", o.UID)
		return "", false, nil

	case submit.IsNetworkUnavailable(err):
		e.host.ForgetOrder(o.UID)
		s.logger.Info("sync session aborted: network unavailable", "uid", o.UID)
		return OutcomeNetworkUnavailable, true, nil

	case submit.IsRejected(err) || (err == nil && res.Failed.Has(o.UID)):
		e.host.ForgetOrder(o.UID)
		return e.rejected(ctx, s, o, err)

	case err == nil:
		// Neither accepted nor refused: the order stays queued
		e.host.ForgetOrder(o.UID)
		unacked := &submit.UnacknowledgedError{UIDs: []order.UID{o.UID}}
		return OutcomeFailed, true, newSessionError(s, ErrCodeFatal, fmt.Errorf("submit %s: %w", o.UID, unacked))

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		e.host.ForgetOrder(o.UID)
		return OutcomeCancelled, true, newSessionError(s, ErrCodeCancelled, err)

	default:
		e.host.ForgetOrder(o.UID)
		return OutcomeFailed, true, newSessionError(s, ErrCodeFatal, fmt.Errorf("submit %s: %w", o.UID, err))
	}
}

// rejected applies the reject policy to o.
func (e *Engine) rejected(ctx context.Context, s *session, o order.PendingOrder, err error) (Outcome, bool, error) {
	s.report.Rejected = append(s.report.Rejected, o.UID)
	s.logger.Warn("order rejected by remote",
		"uid", o.UID,
		"policy", string(e.rejectPolicy),
		"error", err,
	)

	if e.rejectPolicy == DropAndReport {
		if err := e.queue.Remove(ctx, o.UID); err != nil {
			return OutcomeFailed, true, newSessionError(s, ErrCodeStorage, fmt.Errorf("remove rejected %s: %w", o.UID, err))
		}
	}
	return "", false, nil
}

// finish records the report and moves the engine to Idle or Scheduled.
func (e *Engine) finish(ctx context.Context, s *session, outcome Outcome, sessErr error) (Report, error) {
	rep := s.report
	rep.Outcome = outcome
	rep.Finished = e.clock.Now()

	remaining, err := e.queue.Len(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("could not count remaining orders", "error", err)
		remaining = -1
	}
	rep.Remaining = remaining

	switch {
	case outcome == OutcomeCancelled:
		e.setState(StateIdle)
	case outcome == OutcomeFailed && remaining == 0:
		e.setState(StateIdle)
	case remaining == 0:
		e.setState(StateIdle)
		if e.signals != nil {
			e.signals.Resignal()
		}
	default:
		// Failed sessions that leave orders queued back off too
		e.scheduleRetry()
	}

	level := slog.LevelInfo
	if rep.Status() == StatusFailure {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "sync session finished",
		"outcome", string(rep.Outcome),
		"status", string(rep.Status()),
		"attempted", rep.Attempted,
		"succeeded", rep.Succeeded,
		"rejected", len(rep.Rejected),
		"remaining", rep.Remaining,
		"duration", rep.Duration(),
	)

	return rep, sessErr
}

func newSessionError(s *session, code SessionErrorCode, err error) error {
	return &SessionError{Code: code, SessionID: s.id, Err: err}
}
