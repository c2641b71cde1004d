package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/posync/internal/order"
)

// All returns every queued order, oldest first.
// Results are ordered deterministically: ORDER BY seq ASC, uid ASC COLLATE BINARY.
//
// The result comes from a single statement, so it is a consistent snapshot:
// a concurrent write is either fully visible or not visible at all.
// Returns an empty slice (not nil) when the queue is empty.
func (s *Store) All(ctx context.Context) ([]order.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, id, payload, seq, queued_at
		FROM pending_orders
		ORDER BY seq ASC, uid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, &StorageError{Op: "get all", Err: err}
	}
	defer rows.Close()

	orders := []order.PendingOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &StorageError{Op: "get all", Err: err}
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get all", Err: fmt.Errorf("iterate orders: %w", err)}
	}

	return orders, nil
}

// Get returns the order queued under uid.
// Returns ErrNotFound if it is not queued.
func (s *Store) Get(ctx context.Context, uid order.UID) (order.PendingOrder, error) {
	key, err := order.NormalizeUID(uid)
	if err != nil {
		return order.PendingOrder{}, fmt.Errorf("get order: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT uid, id, payload, seq, queued_at
		FROM pending_orders
		WHERE uid = ?
	`, string(key))

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.PendingOrder{}, ErrNotFound
	}
	if err != nil {
		return order.PendingOrder{}, &StorageError{Op: "get", Err: err}
	}
	return o, nil
}

// Len returns the number of queued orders.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_orders`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (order.PendingOrder, error) {
	var (
		uid, id, payload, queuedAt string
		seq                        int64
	)
	if err := r.Scan(&uid, &id, &payload, &seq, &queuedAt); err != nil {
		return order.PendingOrder{}, err
	}

	at, err := unmarshalTime(queuedAt)
	if err != nil {
		return order.PendingOrder{}, fmt.Errorf("order %s: %w", uid, err)
	}

	return order.PendingOrder{
		ID:       order.ID(id),
		UID:      order.UID(uid),
		Payload:  unmarshalPayload(payload),
		Seq:      seq,
		QueuedAt: at,
	}, nil
}
