package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/order"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// assertUIDs compares an observed uid list with the expected one, in order.
func assertUIDs(result *Result, assertion Assertion, actual []order.UID) error {
	got := make([]string, len(actual))
	for i, uid := range actual {
		got[i] = string(uid)
	}
	if equalStrings(got, assertion.Expect) {
		return nil
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%v", assertion.Expect),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertState(result *Result, assertion Assertion) error {
	if result.State == assertion.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: assertion.State,
		Actual:   result.State,
		Trace:    result.Trace,
	}
}

// assertReport checks the selected session report against the set fields.
func assertReport(result *Result, assertion Assertion) error {
	want := assertion.Report
	index := -1
	if want.Session != nil {
		index = *want.Session
	}
	if index < 0 {
		index += len(result.Reports)
	}
	if index < 0 || index >= len(result.Reports) {
		return &AssertionError{
			Type:     AssertReport,
			Expected: fmt.Sprintf("session %d", index),
			Actual:   fmt.Sprintf("%d session(s) ran", len(result.Reports)),
			Trace:    result.Trace,
		}
	}
	rep := result.Reports[index]

	var mismatches []string
	check := func(field string, ok bool, expected, actual any) {
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", field, expected, actual))
		}
	}
	if want.Outcome != "" {
		check("outcome", engine.Outcome(want.Outcome) == rep.Outcome, want.Outcome, rep.Outcome)
	}
	if want.Status != "" {
		check("status", engine.Status(want.Status) == rep.Status(), want.Status, rep.Status())
	}
	if want.Attempted != nil {
		check("attempted", *want.Attempted == rep.Attempted, *want.Attempted, rep.Attempted)
	}
	if want.Succeeded != nil {
		check("succeeded", *want.Succeeded == rep.Succeeded, *want.Succeeded, rep.Succeeded)
	}
	if want.Remaining != nil {
		check("remaining", *want.Remaining == rep.Remaining, *want.Remaining, rep.Remaining)
	}
	if want.Rejected != nil {
		rejected := make([]string, len(rep.Rejected))
		for i, uid := range rep.Rejected {
			rejected[i] = string(uid)
		}
		check("rejected", equalStrings(rejected, want.Rejected), want.Rejected, rejected)
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertReport,
		Expected: fmt.Sprintf("session %d to match", index),
		Actual:   strings.Join(mismatches, "; "),
		Trace:    result.Trace,
	}
}

// assertSignals counts published connectivity events of the given state.
func assertSignals(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Events(EventSignal) {
		fields := strings.Fields(event.Detail)
		if len(fields) == 0 || fields[0] != assertion.State {
			continue
		}
		synthetic := len(fields) > 1 && fields[1] == "synthetic"
		if assertion.Synthetic != nil && *assertion.Synthetic != synthetic {
			continue
		}
		count++
	}

	if count == *assertion.Count {
		return nil
	}
	desc := assertion.State
	if assertion.Synthetic != nil {
		desc = fmt.Sprintf("%s (synthetic=%t)", desc, *assertion.Synthetic)
	}
	return &AssertionError{
		Type:     AssertSignals,
		Expected: fmt.Sprintf("%d %s signal(s)", *assertion.Count, desc),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    result.Trace,
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertQueue:
			err = assertUIDs(result, assertion, result.Queue)
		case AssertSubmitted:
			err = assertUIDs(result, assertion, result.Submitted)
		case AssertCached:
			err = assertUIDs(result, assertion, result.Cached)
		case AssertState:
			err = assertState(result, assertion)
		case AssertReport:
			err = assertReport(result, assertion)
		case AssertSignals:
			err = assertSignals(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
