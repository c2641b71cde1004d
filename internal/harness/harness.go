package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/host"
	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/store"
	"github.com/roach88/posync/internal/submit"
	"github.com/roach88/posync/internal/testutil"
)

// epoch is the virtual time every scenario starts at.
var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// Harness drives one scenario. It owns a fresh store, engine and clock.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	gateway *engine.OfflineSubmitter
	clock   *tracingClock
	host    *recordingHost
	remote  *scriptedRemote
	rec     *recorder
	signals <-chan connectivity.Event
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database on a fake clock, so
// the trace is reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database and seed the queue
// 2. Wire the engine and offline submitter to the scripted remote
// 3. Execute steps in order, recording every observable effect
// 4. Take final observations and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	result := NewResult()
	rec := &recorder{result: result}
	clock := &tracingClock{FakeClock: testutil.NewFakeClock(epoch), rec: rec}
	rec.clock = clock.FakeClock
	rec.start = epoch

	st, err := store.Open(":memory:", store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts, err := scenario.Config.engineOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bc := connectivity.NewBroadcaster()
	signals, unsubscribe := bc.Subscribe()
	defer unsubscribe()

	h := &Harness{
		store:   st,
		clock:   clock,
		host:    &recordingHost{OrderList: host.NewOrderList(), rec: rec},
		remote:  newScriptedRemote(scenario.Remote, rec),
		rec:     rec,
		signals: signals,
	}

	opts = append([]engine.Option{
		engine.WithHost(h.host),
		engine.WithBroadcaster(bc),
		engine.WithClock(clock),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		engine.WithSessionIDs(testutil.NewFixedIDGenerator(scenario.SessionID)),
	}, opts...)
	h.engine = engine.New(st, h.remote, opts...)
	defer h.engine.Close()
	h.gateway = engine.NewOfflineSubmitter(h.remote, st, h.host, h.engine, bc)

	ctx := context.Background()

	if err := h.seed(ctx, scenario.Queue); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.observe(ctx); err != nil {
		return nil, fmt.Errorf("failed to observe final state: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// seed queues the scenario's initial orders, oldest first.
func (h *Harness) seed(ctx context.Context, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	orders := make([]order.PendingOrder, len(uids))
	for i, uid := range uids {
		orders[i] = newOrder(uid)
	}
	if err := h.store.PutAll(ctx, orders); err != nil {
		return fmt.Errorf("failed to seed queue: %w", err)
	}
	return nil
}

func newOrder(uid string) order.PendingOrder {
	return order.PendingOrder{
		ID:      order.ID("id-" + uid),
		UID:     order.UID(uid),
		Payload: []byte(`{}`),
	}
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	kind, err := step.kind()
	if err != nil {
		return err
	}

	switch kind {
	case "sync":
		h.sync(ctx)
	case "submit":
		return h.submit(ctx, step.Submit)
	case "advance":
		h.clock.Advance(step.Advance.Std())
		if h.rec.takeRetry() {
			// The engine's Run loop would start a session on the retry wake-up
			h.sync(ctx)
		} else {
			h.rec.record(EventState, "", h.engine.State().String())
		}
	case "remote":
		h.remote.set(step.Remote)
		h.rec.record(EventRemote, "", formatOutcomes(step.Remote))
	}
	return nil
}

// sync runs one session and records its report, any error, the signals it
// published and the engine state.
func (h *Harness) sync(ctx context.Context) {
	rep, err := h.engine.TriggerSync(ctx)
	h.rec.addReport(rep)
	h.rec.record(EventSession, "", fmt.Sprintf("%s status=%s attempted=%d succeeded=%d rejected=%d remaining=%d",
		rep.Outcome, rep.Status(), rep.Attempted, rep.Succeeded, len(rep.Rejected), rep.Remaining))
	if err != nil {
		h.rec.record(EventError, "", errorDetail(err))
	}
	h.drainSignals()
	h.rec.record(EventState, "", h.engine.State().String())
}

// submit hands a new order to the offline submitter the way the
// application does: it is registered first and forgotten once the remote
// has it.
func (h *Harness) submit(ctx context.Context, uid string) error {
	o := newOrder(uid)
	h.host.RegisterOrder(o)

	_, err := h.gateway.Submit(ctx, []order.PendingOrder{o}, submit.Options{})
	switch {
	case submit.IsRejected(err):
		h.rec.record(EventGateway, uid, "rejected")
	case err != nil:
		h.rec.record(EventGateway, uid, "error")
	default:
		_, getErr := h.store.Get(ctx, o.UID)
		switch {
		case getErr == nil:
			h.rec.record(EventGateway, uid, "queued")
		case errors.Is(getErr, store.ErrNotFound):
			h.host.ForgetOrder(o.UID)
			h.rec.record(EventGateway, uid, "accepted")
		default:
			return fmt.Errorf("failed to check queue for %s: %w", uid, getErr)
		}
	}

	h.drainSignals()
	return nil
}

// drainSignals records the event waiting in the subscription, if any.
func (h *Harness) drainSignals() {
	select {
	case ev := <-h.signals:
		detail := ev.State.String()
		if ev.Synthetic {
			detail += " synthetic"
		}
		h.rec.record(EventSignal, "", detail)
	default:
	}
}

// observe fills in the result's final observations.
func (h *Harness) observe(ctx context.Context) error {
	queued, err := h.store.All(ctx)
	if err != nil {
		return err
	}
	cached := h.host.Orders()

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.result.Queue = append(h.rec.result.Queue, order.UIDs(queued)...)
	h.rec.result.Cached = append(h.rec.result.Cached, order.UIDs(cached)...)
	h.rec.result.State = h.engine.State().String()
	return nil
}

func errorDetail(err error) string {
	var sessErr *engine.SessionError
	if errors.As(err, &sessErr) {
		return string(sessErr.Code)
	}
	return err.Error()
}

// formatOutcomes renders outcomes as "u1=accept u2=reject", sorted by uid.
func formatOutcomes(outcomes map[string]string) string {
	uids := make([]string, 0, len(outcomes))
	for uid := range outcomes {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	parts := make([]string, len(uids))
	for i, uid := range uids {
		parts[i] = uid + "=" + outcomes[uid]
	}
	return strings.Join(parts, " ")
}

// recorder appends trace events stamped with the virtual time offset.
// Sessions run on their own goroutine, so every write is locked.
type recorder struct {
	mu       sync.Mutex
	clock    *testutil.FakeClock
	start    time.Time
	result   *Result
	retryDue bool
}

func (r *recorder) record(typ, uid, detail string) {
	at := "+" + r.clock.Now().Sub(r.start).String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Seq:    len(r.result.Trace) + 1,
		At:     at,
		Type:   typ,
		UID:    uid,
		Detail: detail,
	})
}

func (r *recorder) addReport(rep engine.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Reports = append(r.result.Reports, rep)
}

func (r *recorder) addSubmitted(uid order.UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Submitted = append(r.result.Submitted, uid)
}

func (r *recorder) retryFired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryDue = true
}

// takeRetry reports whether a retry fired since the last call.
func (r *recorder) takeRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := r.retryDue
	r.retryDue = false
	return due
}

// tracingClock records every backoff timer that fires.
type tracingClock struct {
	*testutil.FakeClock
	rec *recorder
}

// AfterFunc implements engine.Clock.
func (c *tracingClock) AfterFunc(d time.Duration, f func()) func() bool {
	return c.FakeClock.AfterFunc(d, func() {
		c.rec.record(EventRetry, "", "")
		c.rec.retryFired()
		f()
	})
}

// recordingHost is the application's order list with its callbacks traced.
type recordingHost struct {
	*host.OrderList
	rec *recorder
}

// RegisterOrder implements engine.Host.
func (h *recordingHost) RegisterOrder(o order.PendingOrder) {
	h.rec.record(EventRegister, string(o.UID), "")
	h.OrderList.RegisterOrder(o)
}

// ForgetOrder implements engine.Host.
func (h *recordingHost) ForgetOrder(uid order.UID) {
	h.rec.record(EventForget, string(uid), "")
	h.OrderList.ForgetOrder(uid)
}

// scriptedRemote answers each order with its scripted outcome.
type scriptedRemote struct {
	mu       sync.Mutex
	outcomes map[string]string
	rec      *recorder
}

func newScriptedRemote(outcomes map[string]string, rec *recorder) *scriptedRemote {
	r := &scriptedRemote{outcomes: make(map[string]string), rec: rec}
	r.set(outcomes)
	return r
}

func (r *scriptedRemote) set(outcomes map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, outcome := range outcomes {
		r.outcomes[uid] = outcome
	}
}

func (r *scriptedRemote) outcome(uid order.UID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.outcomes[string(uid)]; ok {
		return o
	}
	return OutcomeAccept
}

// Submit implements submit.Submitter. The first order that is not accepted
// ends the call.
func (r *scriptedRemote) Submit(ctx context.Context, orders []order.PendingOrder, opts submit.Options) (submit.Result, error) {
	res := submit.Result{Successful: submit.UIDSet{}, Failed: submit.UIDSet{}}
	for _, o := range orders {
		outcome := r.outcome(o.UID)
		r.rec.record(EventSubmit, string(o.UID), outcomeDetail(outcome))

		switch outcome {
		case OutcomeReject:
			res.Failed.Add(o.UID)
			return res, &submit.RejectedError{
				UIDs:    []order.UID{o.UID},
				Reasons: map[order.UID]string{o.UID: "scripted rejection"},
			}
		case OutcomeUnavailable:
			return submit.Result{}, submit.Unavailable(errors.New("scripted network failure"))
		case OutcomeFatal:
			return submit.Result{}, errors.New("scripted fatal error")
		}

		res.Successful.Add(o.UID)
		r.rec.addSubmitted(o.UID)
	}
	return res, nil
}

// outcomeDetail renders an outcome in the past tense used by the trace.
func outcomeDetail(outcome string) string {
	switch outcome {
	case OutcomeAccept:
		return "accepted"
	case OutcomeReject:
		return "rejected"
	default:
		return outcome
	}
}
