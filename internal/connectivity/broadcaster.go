package connectivity

import (
	"sync"
	"time"
)

// State is the connectivity state.
type State int

const (
	// StateUnknown is the state before the first probe or forced transition.
	StateUnknown State = iota
	// StateOnline means the remote endpoint answered.
	StateOnline
	// StateOffline means the remote endpoint could not be reached.
	StateOffline
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Event is one published transition.
type Event struct {
	State State

	// Synthetic marks an Online re-emitted after a successful drain rather
	// than observed by a probe.
	Synthetic bool

	At time.Time
}

// Broadcaster fans events out to subscribers.
//
// Each subscriber has a one-slot buffer; a slow subscriber only ever sees
// the latest event. Publish never blocks.
//
// Thread-safety: all methods are safe for concurrent use.
type Broadcaster struct {
	mu    sync.Mutex
	subs  map[int]chan Event
	next  int
	state State
	now   func() time.Time
}

// NewBroadcaster creates a broadcaster in StateUnknown.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber. Call the returned func to unsubscribe;
// it closes the channel and is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish records ev.State and delivers ev to every subscriber.
// A zero ev.At is stamped with the current time.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(ev)
}

// PublishIfChanged publishes ev only if ev.State differs from the current
// state. The comparison and the publish happen under one lock. Returns
// whether ev was published.
func (b *Broadcaster) PublishIfChanged(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev.State == b.state {
		return false
	}
	b.publishLocked(ev)
	return true
}

func (b *Broadcaster) publishLocked(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.state = ev.State

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Slot full: drop the stale event so the latest one wins
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// State returns the last published state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetOffline forces the Offline state.
func (b *Broadcaster) SetOffline() {
	b.Publish(Event{State: StateOffline})
}

// SetOnline forces the Online state as an observed transition.
func (b *Broadcaster) SetOnline() {
	b.Publish(Event{State: StateOnline})
}

// Resignal publishes a synthetic Online.
func (b *Broadcaster) Resignal() {
	b.Publish(Event{State: StateOnline, Synthetic: true})
}
