package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/posync/internal/order"
)

func TestAll_EmptyReturnsEmptySlice(t *testing.T) {
	s := createTestStore(t)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestAll_FIFOOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert in an order that differs from lexical uid order
	for _, uid := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, testOrder("id-"+uid, uid)))
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []order.UID{"c", "a", "b"}, order.UIDs(all))
}

func TestAll_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, testOrder("1", "u1")))
	require.NoError(t, s1.Put(ctx, testOrder("2", "u2")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	all, err := s2.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []order.UID{"u1", "u2"}, order.UIDs(all))
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsStorageError(err))
}

func TestLen(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Put(ctx, testOrder("1", "u1")))
	require.NoError(t, s.Put(ctx, testOrder("2", "u2")))

	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestQueue_MatchesModel drives random put/remove sequences against the
// store and a slice model: keyed by uid, FIFO by first insert.
func TestQueue_MatchesModel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, err := Open(":memory:")
		if err != nil {
			rt.Fatalf("Open() failed: %v", err)
		}
		defer s.Close()
		ctx := context.Background()

		var model []order.UID
		indexOf := func(uid order.UID) int {
			for i, u := range model {
				if u == uid {
					return i
				}
			}
			return -1
		}

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			uid := order.UID(rapid.SampledFrom([]string{"a", "b", "c", "d", "e"}).Draw(rt, "uid"))
			if rapid.Bool().Draw(rt, "put") {
				if err := s.Put(ctx, testOrder("id", string(uid))); err != nil {
					rt.Fatalf("Put(%s): %v", uid, err)
				}
				if indexOf(uid) < 0 {
					model = append(model, uid)
				}
			} else {
				if err := s.Remove(ctx, uid); err != nil {
					rt.Fatalf("Remove(%s): %v", uid, err)
				}
				if idx := indexOf(uid); idx >= 0 {
					model = append(model[:idx], model[idx+1:]...)
				}
			}

			all, err := s.All(ctx)
			if err != nil {
				rt.Fatalf("All(): %v", err)
			}
			got := order.UIDs(all)
			if len(got) != len(model) {
				rt.Fatalf("queue %v, model %v", got, model)
			}
			for j := range got {
				if got[j] != model[j] {
					rt.Fatalf("queue %v, model %v", got, model)
				}
			}
		}
	})
}
