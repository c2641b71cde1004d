package cli

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: drains_two
description: "Two queued orders are drained"
queue: [u1, u2]
steps:
  - sync: true
assertions:
  - type: queue
    expect: []
`

const failingScenario = `
name: wrong_state
description: "Expects a state the engine never reaches"
queue: [u1]
steps:
  - sync: true
assertions:
  - type: state
    state: scheduled
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestScenarioCommand_AllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"drains_two.yaml": passingScenario,
		"README.md":       "not a scenario",
	})

	stdout, _, err := executeCommand(t, "scenario", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ drains_two")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommand_FailureExitCode(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"drains_two.yaml":  passingScenario,
		"wrong_state.yaml": failingScenario,
	})

	stdout, _, err := executeCommand(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong_state")
	assert.Contains(t, stdout, "Assertion failed: state")
	assert.Contains(t, stdout, "1 passed, 1 failed, 2 total")
}

func TestScenarioCommand_FilterAndTrace(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"drains_two.yaml":  passingScenario,
		"wrong_state.yaml": failingScenario,
	})

	stdout, _, err := executeCommand(t, "scenario", dir, "--filter", "drains_*", "--show-trace")
	require.NoError(t, err)
	assert.Contains(t, stdout, "    1 +0s register u1")
	assert.Contains(t, stdout, "session drained status=success attempted=2")
	assert.NotContains(t, stdout, "wrong_state")
}

func TestScenarioCommand_JSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"drains_two.yaml": passingScenario})

	stdout, _, err := executeCommand(t, "--format", "json", "scenario", dir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "drains_two", resp.Data.Scenarios[0].Name)
}

func TestScenarioCommand_LoadErrorReported(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "name: [unterminated"})

	stdout, _, err := executeCommand(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestScenarioCommand_MissingDir(t *testing.T) {
	_, _, err := executeCommand(t, "scenario", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestScenarioCommand_Empty(t *testing.T) {
	stdout, _, err := executeCommand(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")
}
