package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/posync/internal/order"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("session-1")

	assert.Equal(t, order.UID("session-1"), gen.Generate())
	assert.Equal(t, order.UID("session-1"), gen.Generate())
}

func TestFixedIDGenerator_EmptyDefault(t *testing.T) {
	assert.Equal(t, order.UID("test-session"), NewFixedIDGenerator("").Generate())
}
