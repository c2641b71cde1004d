package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
config:
  session_deadline: 5s
  pace: 0s
  backoff: 1m
  reject_policy: drop-and-report
queue: [u1, u2]
remote:
  u2: reject
steps:
  - sync: true
  - submit: u3
  - advance: 1m
  - remote: { u2: accept }
assertions:
  - type: queue
    expect: []
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, 5*time.Second, scenario.Config.SessionDeadline.Std())
	require.NotNil(t, scenario.Config.Pace)
	assert.Equal(t, time.Duration(0), scenario.Config.Pace.Std())
	assert.Equal(t, time.Minute, scenario.Config.Backoff.Std())
	assert.Equal(t, []string{"u1", "u2"}, scenario.Queue)
	assert.Equal(t, OutcomeReject, scenario.Remote["u2"])
	require.Len(t, scenario.Steps, 4)
	assert.True(t, scenario.Steps[0].Sync)
	assert.Equal(t, "u3", scenario.Steps[1].Submit)
	assert.Equal(t, time.Minute, scenario.Steps[2].Advance.Std())
	assert.Equal(t, OutcomeAccept, scenario.Steps[3].Remote["u2"])
	assert.Equal(t, []string{}, scenario.Assertions[0].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	content := `
name: typo
description: "Misspelled key"
steps:
  - sync: true
assertion:
  - type: state
    state: idle
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
steps: [{sync: true}]
assertions: [{type: state, state: idle}]
`,
			wantErr: "name is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: "d"
assertions: [{type: state, state: idle}]
`,
			wantErr: "steps list is required",
		},
		{
			name: "two actions in one step",
			content: `
name: n
description: "d"
steps: [{sync: true, submit: u1}]
assertions: [{type: state, state: idle}]
`,
			wantErr: "only one of",
		},
		{
			name: "empty step",
			content: `
name: n
description: "d"
steps: [{}]
assertions: [{type: state, state: idle}]
`,
			wantErr: "one of sync, submit, advance or remote is required",
		},
		{
			name: "unknown outcome",
			content: `
name: n
description: "d"
remote: {u1: maybe}
steps: [{sync: true}]
assertions: [{type: state, state: idle}]
`,
			wantErr: `unknown outcome "maybe"`,
		},
		{
			name: "duplicate queue uid",
			content: `
name: n
description: "d"
queue: [u1, u1]
steps: [{sync: true}]
assertions: [{type: state, state: idle}]
`,
			wantErr: `duplicate uid "u1"`,
		},
		{
			name: "bad reject policy",
			content: `
name: n
description: "d"
config: {reject_policy: ignore}
steps: [{sync: true}]
assertions: [{type: state, state: idle}]
`,
			wantErr: "unknown reject policy",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: "d"
steps: [{sync: true}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "queue assertion without expect",
			content: `
name: n
description: "d"
steps: [{sync: true}]
assertions: [{type: queue}]
`,
			wantErr: "expect is required for queue",
		},
		{
			name: "signals without count",
			content: `
name: n
description: "d"
steps: [{sync: true}]
assertions: [{type: signals, state: online}]
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_BadDuration(t *testing.T) {
	content := `
name: n
description: "d"
steps: [{advance: soon}]
assertions: [{type: state, state: idle}]
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}
