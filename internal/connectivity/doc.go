// Package connectivity tracks whether the remote order endpoint is
// reachable and fans Online/Offline transitions out to subscribers.
//
// The Broadcaster holds the process-wide state. The Monitor probes a health
// URL and publishes edge-triggered transitions; the offline gateway forces
// Offline when a submission fails; the sync engine re-emits a synthetic
// Online after draining the queue. Subscribers that drive work should
// ignore synthetic events they produced themselves.
package connectivity
