// Package harness runs scripted sync scenarios against the real engine.
//
// A scenario seeds the queue, scripts how the remote answers each order
// uid, and then drives the engine and the offline submitter through a list
// of steps. Every observable effect (host cache callbacks, remote calls,
// connectivity signals, session reports, engine state) is recorded in a
// trace that can be asserted on or compared against a golden file.
//
// # Scenario Format
//
//	name: network_abort_then_retry
//	description: "A network failure aborts the session; the backoff retries it"
//	config:
//	  pace: 2s
//	  backoff: 30m
//	  reject_policy: keep-and-retry
//	queue: [u1, u2]
//	remote:
//	  u1: unavailable
//	steps:
//	  - sync: true
//	  - remote: { u1: accept }
//	  - advance: 30m
//	assertions:
//	  - type: queue
//	    expect: []
//	  - type: report
//	    report: { outcome: drained, status: success }
//
// Remote outcomes are accept (the default), reject, unavailable and fatal.
//
// # Steps
//
//   - sync: run one session through TriggerSync
//   - submit: submit a new order through the offline submitter
//   - advance: move the virtual clock; a backoff timer that fires starts a
//     session, as the engine's Run loop would
//   - remote: change the scripted outcomes
//
// # Deterministic Testing
//
// Scenarios run on an in-memory SQLite database with a fake clock and a
// fixed session id, so the same scenario always yields the same trace.
package harness
