package engine

// wakeSignal is a coalescing trigger for the Run loop.
//
// The channel has a buffer of one: any number of Notify calls made while a
// session runs collapse into a single follow-up session.
type wakeSignal struct {
	ch chan struct{}
}

func newWakeSignal() *wakeSignal {
	return &wakeSignal{ch: make(chan struct{}, 1)}
}

// Notify requests a session. Never blocks.
func (w *wakeSignal) Notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the channel Run selects on.
func (w *wakeSignal) C() <-chan struct{} {
	return w.ch
}
