// Package submit wraps the host's opaque "submit orders" remote call and
// classifies its failures.
//
// The adapter never touches the local queue: persisting orders on a
// network failure is the caller's job (see engine.OfflineSubmitter).
package submit

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/posync/internal/order"
)

// Options tune one submission call.
type Options struct {
	// Timeout bounds the remote call. Zero means no extra bound.
	Timeout time.Duration

	// Silent lowers failure logging to debug level. Used by background
	// sync sessions where failures are expected while offline.
	Silent bool
}

// UIDSet is a set of order uids.
type UIDSet map[order.UID]struct{}

// NewUIDSet builds a set from uids.
func NewUIDSet(uids ...order.UID) UIDSet {
	s := make(UIDSet, len(uids))
	for _, uid := range uids {
		s[uid] = struct{}{}
	}
	return s
}

// Add inserts uid into the set.
func (s UIDSet) Add(uid order.UID) {
	s[uid] = struct{}{}
}

// Has reports whether uid is in the set. Safe on a nil set.
func (s UIDSet) Has(uid order.UID) bool {
	_, ok := s[uid]
	return ok
}

// Sorted returns the members in lexical order.
func (s UIDSet) Sorted() []order.UID {
	out := make([]order.UID, 0, len(s))
	for uid := range s {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Result is the per-order outcome of one submission.
type Result struct {
	Successful UIDSet
	Failed     UIDSet
}

// Submitter submits orders to the remote system.
//
// Implementations return ErrNetworkUnavailable (matched with errors.Is) when
// the remote could not be reached, a *RejectedError when it refused orders
// (those uids are also in Result.Failed), and any other error as fatal.
// An order counts as accepted only when it is in Result.Successful.
type Submitter interface {
	Submit(ctx context.Context, orders []order.PendingOrder, opts Options) (Result, error)
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, orders []order.PendingOrder, opts Options) (Result, error)

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, orders []order.PendingOrder, opts Options) (Result, error) {
	return f(ctx, orders, opts)
}

// Transport is the host's opaque remote call. It reports per-order outcomes
// or fails with whatever error its protocol produces.
type Transport interface {
	Send(ctx context.Context, orders []order.PendingOrder) (Result, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, orders []order.PendingOrder) (Result, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, orders []order.PendingOrder) (Result, error) {
	return f(ctx, orders)
}

// Adapter is the Submitter over a raw Transport: it applies the per-call
// timeout and classifies transport failures.
type Adapter struct {
	transport Transport
	logger    *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter wraps transport.
func NewAdapter(transport Transport, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		transport: transport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit sends orders through the transport.
//
// A call that outlives opts.Timeout is reported as network-unavailable.
// Orders the transport lists as failed are reported as a *RejectedError even
// if the transport itself returned no error. Orders missing from both sets
// are reported as an *UnacknowledgedError, which is fatal.
func (a *Adapter) Submit(ctx context.Context, orders []order.PendingOrder, opts Options) (Result, error) {
	if len(orders) == 0 {
		return Result{Successful: UIDSet{}, Failed: UIDSet{}}, nil
	}

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res, err := a.transport.Send(callCtx, orders)
	if res.Successful == nil {
		res.Successful = UIDSet{}
	}
	if res.Failed == nil {
		res.Failed = UIDSet{}
	}

	if err != nil {
		// The per-call timeout fired but the caller is still alive: the
		// remote did not answer in time, which is an outage, not a bug.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = Unavailable(err)
		}
		err = Classify(err)
		if re, ok := AsRejected(err); ok {
			for _, uid := range re.UIDs {
				res.Failed.Add(uid)
			}
		}
		a.logFailure(ctx, orders, err, opts.Silent)
		return res, err
	}

	if len(res.Failed) > 0 {
		rejected := &RejectedError{UIDs: res.Failed.Sorted()}
		a.logFailure(ctx, orders, rejected, opts.Silent)
		return res, rejected
	}

	var missing []order.UID
	for _, o := range orders {
		if !res.Successful.Has(o.UID) {
			missing = append(missing, o.UID)
		}
	}
	if len(missing) > 0 {
		unacked := &UnacknowledgedError{UIDs: missing}
		a.logFailure(ctx, orders, unacked, opts.Silent)
		return res, unacked
	}

	return res, nil
}

func (a *Adapter) logFailure(ctx context.Context, orders []order.PendingOrder, err error, silent bool) {
	level := slog.LevelWarn
	if silent {
		level = slog.LevelDebug
	}
	a.logger.Log(ctx, level, "order submission failed",
		"orders", len(orders),
		"network_unavailable", IsNetworkUnavailable(err),
		"rejected", IsRejected(err),
		"error", err,
	)
}
