// Package host holds the application's in-memory list of open orders.
//
// The list is a cache of what the till is working on; the local queue store
// is the source of truth for what still has to reach the remote system.
package host

import (
	"sync"

	"github.com/roach88/posync/internal/order"
)

// OrderList is a mutex-guarded list of orders keyed by uid, kept in
// insertion order. It implements engine.Host.
type OrderList struct {
	mu     sync.RWMutex
	orders map[order.UID]order.PendingOrder
	seq    []order.UID
}

// NewOrderList creates an empty list.
func NewOrderList() *OrderList {
	return &OrderList{orders: make(map[order.UID]order.PendingOrder)}
}

// RegisterOrder adds or replaces o. Orders with an empty uid are ignored.
func (l *OrderList) RegisterOrder(o order.PendingOrder) {
	if o.UID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orders[o.UID]; !ok {
		l.seq = append(l.seq, o.UID)
	}
	l.orders[o.UID] = o
}

// ForgetOrder removes the order with uid, if present.
func (l *OrderList) ForgetOrder(uid order.UID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orders[uid]; !ok {
		return
	}
	delete(l.orders, uid)
	for i, u := range l.seq {
		if u == uid {
			l.seq = append(l.seq[:i], l.seq[i+1:]...)
			break
		}
	}
}

// Get returns the order with uid.
func (l *OrderList) Get(uid order.UID) (order.PendingOrder, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[uid]
	return o, ok
}

// Orders returns a copy of the list in insertion order.
func (l *OrderList) Orders() []order.PendingOrder {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]order.PendingOrder, 0, len(l.seq))
	for _, uid := range l.seq {
		out = append(out, l.orders[uid])
	}
	return out
}

// Len returns the number of orders.
func (l *OrderList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}
