package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/submit"
)

// OfflineSubmitter is the Submitter the application uses for new orders.
//
// It wraps the real submitter so that a network failure never reaches the
// caller: the orders are queued, dropped from the host's in-memory list and
// handed to the engine, and the call reports success. While older orders
// are still queued, new ones go straight to the queue so they cannot
// overtake them.
type OfflineSubmitter struct {
	inner   submit.Submitter
	queue   Queue
	host    Host
	signals *connectivity.Broadcaster
	engine  *Engine
	logger  *slog.Logger
}

// NewOfflineSubmitter wraps inner. signals may be nil.
func NewOfflineSubmitter(inner submit.Submitter, q Queue, h Host, e *Engine, signals *connectivity.Broadcaster) *OfflineSubmitter {
	if h == nil {
		h = nopHost{}
	}
	logger := slog.Default()
	if e != nil {
		logger = e.logger
	}
	return &OfflineSubmitter{
		inner:   inner,
		queue:   q,
		host:    h,
		signals: signals,
		engine:  e,
		logger:  logger,
	}
}

// Submit implements submit.Submitter.
//
// Rejections and fatal errors from the inner submitter are returned
// unchanged. Storage failures while queueing are returned as
// *store.StorageError wrapped with context.
func (s *OfflineSubmitter) Submit(ctx context.Context, orders []order.PendingOrder, opts submit.Options) (submit.Result, error) {
	if len(orders) == 0 {
		return submit.Result{Successful: submit.UIDSet{}, Failed: submit.UIDSet{}}, nil
	}

	queued, err := s.queue.Len(ctx)
	if err != nil {
		return submit.Result{}, fmt.Errorf("check queue: %w", err)
	}
	if queued > 0 {
		s.logger.Debug("queue not empty, queueing new orders behind it",
			"orders", len(orders),
			"queued", queued,
		)
		return s.enqueue(ctx, orders, false)
	}

	res, err := s.inner.Submit(ctx, orders, opts)
	if submit.IsNetworkUnavailable(err) {
		s.logger.Info("remote unreachable, queueing orders for sync", "orders", len(orders))
		return s.enqueue(ctx, orders, true)
	}
	return res, err
}

// enqueue persists orders and reports them all as successful.
func (s *OfflineSubmitter) enqueue(ctx context.Context, orders []order.PendingOrder, notify bool) (submit.Result, error) {
	if err := s.queue.PutAll(ctx, orders); err != nil {
		return submit.Result{}, fmt.Errorf("queue orders: %w", err)
	}

	res := submit.Result{Successful: submit.UIDSet{}, Failed: submit.UIDSet{}}
	for _, o := range orders {
		// PutAll already rejected empty uids
		uid, _ := order.NormalizeUID(o.UID)
		s.host.ForgetOrder(uid)
		res.Successful.Add(o.UID)
	}

	if s.signals != nil {
		s.signals.SetOffline()
	}
	if notify && s.engine != nil {
		s.engine.Notify()
	}
	return res, nil
}
