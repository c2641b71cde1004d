package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/posync/internal/order"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(fixedNow))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

// testOrder creates a pending order with a small JSON payload.
func testOrder(id, uid string) order.PendingOrder {
	return order.PendingOrder{
		ID:      order.ID(id),
		UID:     order.UID(uid),
		Payload: json.RawMessage(`{"lines":1}`),
	}
}
