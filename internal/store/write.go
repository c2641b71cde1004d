package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/posync/internal/order"
)

// upsertOrderSQL inserts a pending order or refreshes an existing one.
// A new row takes the next seq; a conflicting row keeps its seq so the
// order keeps its place in the FIFO.
const upsertOrderSQL = `
	INSERT INTO pending_orders (uid, id, payload, seq, queued_at)
	VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM pending_orders), ?)
	ON CONFLICT(uid) DO UPDATE SET
		id = excluded.id,
		payload = excluded.payload
`

// Put stores a pending order keyed by its uid.
// Putting the same uid twice leaves exactly one entry holding the latest
// id and payload.
func (s *Store) Put(ctx context.Context, o order.PendingOrder) error {
	return s.PutAll(ctx, []order.PendingOrder{o})
}

// PutAll stores a batch of pending orders in one transaction.
// Either every order is stored or none is.
func (s *Store) PutAll(ctx context.Context, orders []order.PendingOrder) error {
	if len(orders) == 0 {
		return nil
	}

	rows := make([]order.PendingOrder, len(orders))
	for i, o := range orders {
		n, err := o.Normalized()
		if err != nil {
			return fmt.Errorf("put order %q: %w", o.ID, err)
		}
		rows[i] = n
	}

	queuedAt := marshalTime(s.now())

	return s.withTx(ctx, "put", func(tx *sql.Tx) error {
		for _, o := range rows {
			if _, err := tx.ExecContext(ctx, upsertOrderSQL,
				string(o.UID),
				string(o.ID),
				marshalPayload(o.Payload),
				queuedAt,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", o.UID, err)
			}
		}
		return nil
	})
}

// Remove deletes the order queued under uid.
// Removing an absent uid is not an error.
func (s *Store) Remove(ctx context.Context, uid order.UID) error {
	key, err := order.NormalizeUID(uid)
	if err != nil {
		return fmt.Errorf("remove order: %w", err)
	}

	return s.withTx(ctx, "remove", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM pending_orders WHERE uid = ?`, string(key))
		return err
	})
}

// Clear deletes every queued order.
func (s *Store) Clear(ctx context.Context) error {
	return s.withTx(ctx, "clear", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM pending_orders`)
		return err
	})
}

// withTx runs fn inside a transaction and commits it.
// Any failure rolls the transaction back and is reported as a *StorageError.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return &StorageError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
