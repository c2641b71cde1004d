package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewHTTPProbe(srv.URL, srv.Client())
	assert.NoError(t, p.Check(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	assert.Error(t, p.Check(context.Background()))
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, NewHTTPProbe(url, nil).Check(context.Background()))
}

func TestMonitor_PublishesOnlyTransitions(t *testing.T) {
	var fail atomic.Bool
	probe := ProbeFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	})

	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()
	m := NewMonitor(probe, b)
	ctx := context.Background()

	assert.Equal(t, StateOnline, m.Poll(ctx))
	ev := <-ch
	assert.Equal(t, StateOnline, ev.State)

	// Same state again: nothing published
	m.Poll(ctx)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	fail.Store(true)
	assert.Equal(t, StateOffline, m.Poll(ctx))
	ev = <-ch
	assert.Equal(t, StateOffline, ev.State)
}

func TestMonitor_OnlineAfterForcedOffline(t *testing.T) {
	b := NewBroadcaster()
	m := NewMonitor(ProbeFunc(func(context.Context) error { return nil }), b)
	ctx := context.Background()

	m.Poll(ctx)
	b.SetOffline()

	ch, unsub := b.Subscribe()
	defer unsub()
	m.Poll(ctx)

	ev := <-ch
	assert.Equal(t, StateOnline, ev.State)
	assert.False(t, ev.Synthetic)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	probe := ProbeFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})
	m := NewMonitor(probe, NewBroadcaster(), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMonitor_NilLoggerKeepsDefault(t *testing.T) {
	b := NewBroadcaster()
	m := NewMonitor(ProbeFunc(func(context.Context) error { return errors.New("down") }), b, WithLogger(nil))
	require.NotNil(t, m.logger)

	assert.NotPanics(t, func() {
		assert.Equal(t, StateOffline, m.Poll(context.Background()))
	})
}
