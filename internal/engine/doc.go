// Package engine implements the offline order sync engine.
//
// The engine drains the local queue of orders that could not be submitted
// while the remote endpoint was unreachable.
//
// STATE MACHINE:
//
//	Idle ──trigger──▶ Syncing ──queue empty──▶ Idle (+ synthetic Online)
//	                     │
//	                     └──orders remain──▶ Scheduled ──backoff or Online──▶ Syncing
//
// Triggers are startup, a network failure on the online submission path
// (OfflineSubmitter calls Notify) and a non-synthetic Online event.
//
// SESSIONS:
//
// A session takes a snapshot of the queue and attempts one order at a time
// in FIFO order, pacing attempts with a fixed delay. It stops at the first
// network-unavailable failure or when its wall-clock deadline passes. Orders
// queued while the session runs are drained after the snapshot under the
// same deadline.
//
// At most one session runs at a time. TriggerSync coalesces concurrent
// callers onto the running session and they share its Report.
//
// Thread-safety: all exported methods are safe for concurrent use. Run must
// be called from exactly one goroutine.
package engine
