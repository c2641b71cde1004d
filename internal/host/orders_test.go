package host

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/posync/internal/order"
)

func pending(uid string) order.PendingOrder {
	return order.PendingOrder{ID: order.ID("id-" + uid), UID: order.UID(uid)}
}

func TestOrderList_RegisterAndForget(t *testing.T) {
	l := NewOrderList()
	l.RegisterOrder(pending("u1"))
	l.RegisterOrder(pending("u2"))
	l.RegisterOrder(pending("u3"))

	l.ForgetOrder("u2")
	l.ForgetOrder("absent")

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []order.UID{"u1", "u3"}, order.UIDs(l.Orders()))

	_, ok := l.Get("u2")
	assert.False(t, ok)
}

func TestOrderList_ReRegisterKeepsPosition(t *testing.T) {
	l := NewOrderList()
	l.RegisterOrder(pending("u1"))
	l.RegisterOrder(pending("u2"))

	updated := pending("u1")
	updated.ID = "id-new"
	l.RegisterOrder(updated)

	assert.Equal(t, []order.UID{"u1", "u2"}, order.UIDs(l.Orders()))
	got, ok := l.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, order.ID("id-new"), got.ID)
}

func TestOrderList_IgnoresEmptyUID(t *testing.T) {
	l := NewOrderList()
	l.RegisterOrder(pending(""))
	assert.Equal(t, 0, l.Len())
}

func TestOrderList_ConcurrentAccess(t *testing.T) {
	l := NewOrderList()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("u%d", i)
			l.RegisterOrder(pending(uid))
			_ = l.Orders()
			if i%2 == 0 {
				l.ForgetOrder(order.UID(uid))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, l.Len())
	assert.Len(t, l.Orders(), 25)
}
