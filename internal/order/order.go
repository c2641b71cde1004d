// Package order defines the pending-order model shared by the queue store,
// the submission adapter and the sync engine.
//
// An order is identified twice:
//   - UID: client-generated idempotency key, stable across retries. The queue
//     store and the remote system both key on it.
//   - ID: the host application's local reference into its in-memory order list.
//
// The payload is opaque to this module and is carried as raw JSON.
package order

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// UID is the client-generated idempotency key of an order.
type UID string

// ID is the host application's local reference for an order.
type ID string

// ErrEmptyUID is returned when an order has no usable idempotency key.
var ErrEmptyUID = errors.New("order uid is empty")

// PendingOrder is an order that has not yet been acknowledged by the
// remote system.
//
// Seq and QueuedAt are assigned by the queue store on first insert and are
// zero for orders that have never been queued.
type PendingOrder struct {
	ID       ID              `json:"id"`
	UID      UID             `json:"uid"`
	Payload  json.RawMessage `json:"payload"`
	Seq      int64           `json:"seq,omitempty"`
	QueuedAt time.Time       `json:"queued_at,omitempty"`
}

// NormalizeUID trims surrounding whitespace and converts the key to Unicode
// NFC so that equal keys typed through different input methods map to one
// queue entry.
func NormalizeUID(uid UID) (UID, error) {
	s := strings.TrimSpace(string(uid))
	if s == "" {
		return "", ErrEmptyUID
	}
	return UID(norm.NFC.String(s)), nil
}

// Normalized returns a copy of o with its UID normalized.
// An empty payload is stored as JSON null.
func (o PendingOrder) Normalized() (PendingOrder, error) {
	uid, err := NormalizeUID(o.UID)
	if err != nil {
		return PendingOrder{}, err
	}
	o.UID = uid
	if len(o.Payload) == 0 {
		o.Payload = json.RawMessage("null")
	}
	return o, nil
}

// UIDs returns the idempotency keys of orders, in order.
func UIDs(orders []PendingOrder) []UID {
	out := make([]UID, len(orders))
	for i, o := range orders {
		out[i] = o.UID
	}
	return out
}
