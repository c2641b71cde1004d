package order

import (
	"sync"

	"github.com/google/uuid"
)

// UIDGenerator produces idempotency keys for new orders.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type UIDGenerator interface {
	Generate() UID
}

// UUIDv7Generator generates time-sortable UUIDv7 order keys.
//
// Because UUIDv7 embeds the creation time in its high bits, keys sort by the
// moment the order was rung up, which keeps operator listings readable.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() UID {
	return UID(uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined keys for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu   sync.Mutex
	uids []UID
	idx  int
}

// NewFixedGenerator creates a generator that returns uids in order.
func NewFixedGenerator(uids ...UID) *FixedGenerator {
	return &FixedGenerator{uids: uids}
}

// Generate returns the next predetermined uid.
//
// Panics once all uids have been consumed so that a test creating more
// orders than it declared fails fast.
func (g *FixedGenerator) Generate() UID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.uids) {
		panic("FixedGenerator: all uids exhausted")
	}
	uid := g.uids[g.idx]
	g.idx++
	return uid
}
