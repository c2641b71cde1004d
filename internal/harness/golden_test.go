package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTrace(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, At: "+0s", Type: EventRegister, UID: "u1"},
		{Seq: 2, At: "+2s", Type: EventSession, Detail: "empty status=success"},
	}

	got := string(renderTrace("sample", trace))
	assert.Equal(t, "# sample\n1 +0s register u1\n2 +2s session empty status=success\n", got)
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/empty_queue.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, scenario.Name, result)
}
