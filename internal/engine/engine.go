package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/submit"
)

// Defaults for session timing.
const (
	DefaultSessionDeadline = 150 * time.Second
	DefaultPace            = 2 * time.Second
	DefaultSubmitTimeout   = 5 * time.Second
	DefaultBackoff         = 30 * time.Minute
)

// Queue is the persistent queue the engine drains. Implemented by *store.Store.
type Queue interface {
	All(ctx context.Context) ([]order.PendingOrder, error)
	PutAll(ctx context.Context, orders []order.PendingOrder) error
	Remove(ctx context.Context, uid order.UID) error
	Len(ctx context.Context) (int, error)
}

// Host is the application's in-memory order list. The engine registers an
// order while it is being attempted and forgets it once the attempt settles.
type Host interface {
	RegisterOrder(o order.PendingOrder)
	ForgetOrder(uid order.UID)
}

type nopHost struct{}

func (nopHost) RegisterOrder(order.PendingOrder) {}
func (nopHost) ForgetOrder(order.UID)            {}

// State is the engine state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateScheduled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateScheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RejectPolicy decides what happens to orders the remote refuses.
type RejectPolicy string

const (
	// KeepAndRetry leaves rejected orders queued. They are not retried again
	// in the same session.
	KeepAndRetry RejectPolicy = "keep-and-retry"

	// DropAndReport removes rejected orders from the queue and lists them in
	// the session report.
	DropAndReport RejectPolicy = "drop-and-report"
)

// ParseRejectPolicy parses a policy name. Empty means KeepAndRetry.
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch RejectPolicy(s) {
	case "", KeepAndRetry:
		return KeepAndRetry, nil
	case DropAndReport:
		return DropAndReport, nil
	default:
		return "", fmt.Errorf("unknown reject policy %q (want %s or %s)", s, KeepAndRetry, DropAndReport)
	}
}

// sessionKey is the singleflight key; there is only ever one session.
const sessionKey = "session"

// Engine drains the local order queue.
type Engine struct {
	queue     Queue
	submitter submit.Submitter
	host      Host
	signals   *connectivity.Broadcaster
	clock     Clock
	logger    *slog.Logger
	ids       order.UIDGenerator

	deadline      time.Duration
	pace          time.Duration
	submitTimeout time.Duration
	backoff       time.Duration
	rejectPolicy  RejectPolicy

	group singleflight.Group
	wake  *wakeSignal

	mu        sync.Mutex
	state     State
	stopRetry func() bool

	// running is closed when the current or last session returns.
	running chan struct{}

	// base is cancelled by Close and bounds every session.
	base      context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithHost sets the in-memory order list kept in step with the queue.
func WithHost(h Host) Option {
	return func(e *Engine) {
		if h != nil {
			e.host = h
		}
	}
}

// WithBroadcaster subscribes Run to Online events and enables the synthetic
// Online re-signal after a drain.
func WithBroadcaster(b *connectivity.Broadcaster) Option {
	return func(e *Engine) {
		e.signals = b
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSessionIDs sets the generator for session IDs.
func WithSessionIDs(g order.UIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithSessionDeadline bounds each session's wall-clock duration.
func WithSessionDeadline(d time.Duration) Option {
	return func(e *Engine) {
		e.deadline = d
	}
}

// WithPace sets the delay before each attempt.
func WithPace(d time.Duration) Option {
	return func(e *Engine) {
		e.pace = d
	}
}

// WithSubmitTimeout bounds each single-order submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.submitTimeout = d
	}
}

// WithBackoff sets the delay before a Scheduled retry.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.backoff = d
	}
}

// WithRejectPolicy sets how rejected orders are handled.
func WithRejectPolicy(p RejectPolicy) Option {
	return func(e *Engine) {
		e.rejectPolicy = p
	}
}

// New creates an engine draining q through s.
//
// s is called directly, never through an OfflineSubmitter: a session must
// see network failures rather than have them turned into queued successes.
func New(q Queue, s submit.Submitter, opts ...Option) *Engine {
	base, cancel := context.WithCancel(context.Background())
	e := &Engine{
		queue:         q,
		submitter:     s,
		host:          nopHost{},
		clock:         SystemClock{},
		logger:        slog.Default(),
		ids:           order.UUIDv7Generator{},
		deadline:      DefaultSessionDeadline,
		pace:          DefaultPace,
		submitTimeout: DefaultSubmitTimeout,
		backoff:       DefaultBackoff,
		rejectPolicy:  KeepAndRetry,
		wake:          newWakeSignal(),
		base:          base,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// Notify asks Run to start a session. Safe from any goroutine; never blocks.
// Calls made while a session runs coalesce into one follow-up session.
func (e *Engine) Notify() {
	e.wake.Notify()
}

// TriggerSync runs a session, or joins the one already running, and returns
// its report.
//
// The session is detached from ctx: cancelling ctx makes TriggerSync return
// ctx.Err() early but the session carries on to its own deadline. Only
// Close cancels a running session.
//
// The error is non-nil only for storage failures, fatal submission errors
// and cancellation; the report is filled in as far as the session got.
func (e *Engine) TriggerSync(ctx context.Context) (Report, error) {
	select {
	case <-e.done:
		return Report{Outcome: OutcomeCancelled}, &SessionError{Code: ErrCodeCancelled, Err: context.Canceled}
	default:
	}

	ch := e.group.DoChan(sessionKey, func() (any, error) {
		return e.runSession(e.base)
	})

	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		rep, _ := res.Val.(Report)
		rep.Shared = res.Shared
		return rep, res.Err
	}
}

// Run triggers a session at startup and then whenever Notify is called, the
// retry backoff fires, or a non-synthetic Online event arrives. Session
// errors are logged and the loop continues.
//
// Returns ctx.Err() when ctx is cancelled, or nil after Close.
func (e *Engine) Run(ctx context.Context) error {
	var events <-chan connectivity.Event
	if e.signals != nil {
		ch, unsubscribe := e.signals.Subscribe()
		defer unsubscribe()
		events = ch
	}

	e.logger.Info("sync engine starting")
	e.wake.Notify()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopping: context cancelled")
			return ctx.Err()

		case <-e.done:
			e.logger.Info("sync engine stopping: closed")
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.State == connectivity.StateOnline && !ev.Synthetic {
				e.logger.Debug("online event received", "state", e.State().String())
				e.wake.Notify()
			}

		case <-e.wake.C():
			rep, err := e.TriggerSync(ctx)
			if err != nil && ctx.Err() == nil {
				e.logger.Error("sync session failed",
					"session", rep.SessionID,
					"outcome", string(rep.Outcome),
					"error", err,
				)
			}
		}
	}
}

// Close cancels any running session, stops the retry timer and makes Run
// return. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.mu.Lock()
		close(e.done)
		e.mu.Unlock()
		e.cancelRetry()
		e.setState(StateIdle)
	})
}

// Shutdown closes the engine and waits until a running session has
// returned, or ctx is done. Unlike Close it must not be called from inside
// a session.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Close()

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if running == nil {
		return nil
	}

	select {
	case <-running:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginSession registers a new session, or reports false once Close has
// been called.
func (e *Engine) beginSession() (chan struct{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
		return nil, false
	default:
	}
	e.running = make(chan struct{})
	return e.running, true
}

// scheduleRetry arms the backoff timer and moves to Scheduled.
func (e *Engine) scheduleRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopRetry != nil {
		e.stopRetry()
	}
	select {
	case <-e.done:
		e.state = StateIdle
		e.stopRetry = nil
		return
	default:
	}
	e.state = StateScheduled
	e.stopRetry = e.clock.AfterFunc(e.backoff, e.wake.Notify)
}

func (e *Engine) cancelRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopRetry != nil {
		e.stopRetry()
		e.stopRetry = nil
	}
}
