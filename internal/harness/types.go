package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/order"
)

// Trace event types.
const (
	EventRegister = "register" // host cache RegisterOrder
	EventForget   = "forget"   // host cache ForgetOrder
	EventSubmit   = "submit"   // one order reached the scripted remote
	EventGateway  = "gateway"  // offline submitter returned for a submit step
	EventSignal   = "signal"   // connectivity event published
	EventSession  = "session"  // TriggerSync returned a report
	EventError    = "error"    // TriggerSync returned an error
	EventState    = "state"    // engine state after a sync or advance step
	EventRemote   = "remote"   // scripted outcomes changed
	EventRetry    = "retry"    // backoff timer fired
)

// TraceEvent is one observable effect, stamped with virtual time.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	At     string `json:"at"` // offset from scenario start, e.g. "+2s"
	Type   string `json:"type"`
	UID    string `json:"uid,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// String renders the event as one golden-file line.
func (e TraceEvent) String() string {
	parts := []string{fmt.Sprint(e.Seq), e.At, e.Type}
	if e.UID != "" {
		parts = append(parts, e.UID)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every recorded event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Reports holds one report per session, in order.
	Reports []engine.Report `json:"reports"`

	// Final observations taken after the last step. Submitted lists the
	// uids the scripted remote accepted, in order.
	Queue     []order.UID `json:"queue"`
	Submitted []order.UID `json:"submitted"`
	Cached    []order.UID `json:"cached"`
	State     string      `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Reports:   []engine.Report{},
		Queue:     []order.UID{},
		Submitted: []order.UID{},
		Cached:    []order.UID{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace events of type typ.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
