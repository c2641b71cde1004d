package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// renderTrace renders a trace as golden-file text: a "# name" header and
// one line per event.
func renderTrace(name string, trace []TraceEvent) []byte {
	var buf strings.Builder
	buf.WriteString("# ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	for _, event := range trace {
		buf.WriteString(event.String())
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect assertions as well; test
// failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, renderTrace(scenarioName, result.Trace))
}
