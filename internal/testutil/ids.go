package testutil

import "github.com/roach88/posync/internal/order"

// FixedIDGenerator generates the same id every time.
//
// Used for session IDs so that logs and golden reports from a scenario are
// byte-identical across runs. Unlike order.FixedGenerator, which hands out a
// list in sequence and panics when it runs out, this never runs out.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id order.UID
}

// NewFixedIDGenerator creates a generator returning id.
// If id is empty, Generate returns "test-session".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-session"
	}
	return &FixedIDGenerator{id: order.UID(id)}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() order.UID {
	return g.id
}
