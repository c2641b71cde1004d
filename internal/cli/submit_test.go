package cli

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posync/internal/order"
)

func TestSubmitAccepted(t *testing.T) {
	remote := newFakeRemote(t)
	cfgPath, dbPath := writeConfig(t, remote.URL)

	out, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "1042", "--uid", "u1")
	require.NoError(t, err)

	assert.Equal(t, "Order 1042 accepted (uid u1)\n", out)
	assert.Equal(t, []order.UID{"u1"}, remote.Received())
	assert.Empty(t, queuedUIDs(t, dbPath))
}

func TestSubmitQueuedWhenServerUnavailable(t *testing.T) {
	remote := newFakeRemote(t)
	remote.respondWith(http.StatusServiceUnavailable)
	cfgPath, dbPath := writeConfig(t, remote.URL)

	out, _, err := executeCommand(t, "--config", cfgPath, "--format", "json", "submit", "--id", "1042", "--uid", "u1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", data["uid"])
	assert.Equal(t, true, data["queued"])

	assert.Equal(t, []order.UID{"u1"}, queuedUIDs(t, dbPath))
}

func TestSubmitQueuedWhenServerUnreachable(t *testing.T) {
	remote := newFakeRemote(t)
	url := remote.URL
	remote.Close()
	cfgPath, dbPath := writeConfig(t, url)

	out, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "1042", "--uid", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Order 1042 queued for sync (uid u1)\n", out)
	assert.Equal(t, []order.UID{"u1"}, queuedUIDs(t, dbPath))
}

func TestSubmitQueuesBehindPendingOrders(t *testing.T) {
	remote := newFakeRemote(t)
	cfgPath, dbPath := writeConfig(t, remote.URL)
	seedQueue(t, dbPath, "u1")

	out, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "1043", "--uid", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "queued for sync")

	assert.Empty(t, remote.Received(), "must not overtake queued orders")
	assert.Equal(t, []order.UID{"u1", "u2"}, queuedUIDs(t, dbPath))
}

func TestSubmitRejected(t *testing.T) {
	remote := newFakeRemote(t)
	remote.reject("u1", "duplicate order")
	cfgPath, dbPath := writeConfig(t, remote.URL)

	out, _, err := executeCommand(t, "--config", cfgPath, "--format", "json", "submit", "--id", "1042", "--uid", "u1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)

	assert.Empty(t, queuedUIDs(t, dbPath), "rejected orders are not queued")
}

func TestSubmitPayloadFromFile(t *testing.T) {
	remote := newFakeRemote(t)
	remote.respondWith(http.StatusServiceUnavailable)
	cfgPath, dbPath := writeConfig(t, remote.URL)

	payloadPath := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(payloadPath, []byte(`{"total":990,"items":["latte"]}`), 0644))

	_, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "7", "--uid", "u7", "--payload-file", payloadPath)
	require.NoError(t, err)
	assert.Equal(t, []order.UID{"u7"}, queuedUIDs(t, dbPath))
}

func TestSubmitPayloadFromStdin(t *testing.T) {
	remote := newFakeRemote(t)
	cfgPath, _ := writeConfig(t, remote.URL)

	stdout := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(`{"total":1250}`))
	cmd.SetArgs([]string{"--config", cfgPath, "submit", "--id", "8", "--uid", "u8", "--payload-file", "-"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, []order.UID{"u8"}, remote.Received())
}

func TestSubmitInvalidPayload(t *testing.T) {
	remote := newFakeRemote(t)
	cfgPath, _ := writeConfig(t, remote.URL)

	payloadPath := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(payloadPath, []byte(`{"total":`), 0644))

	_, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "9", "--payload-file", payloadPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not valid JSON")
	assert.Empty(t, remote.Received())
}

func TestSubmitMissingID(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1")

	_, _, err := executeCommand(t, "--config", cfgPath, "submit", "--uid", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestSubmitWithoutEndpoint(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")

	_, _, err := executeCommand(t, "--config", cfgPath, "submit", "--id", "1", "--uid", "u1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "endpoint not configured")
}

func TestSubmitGeneratesUID(t *testing.T) {
	remote := newFakeRemote(t)
	cfgPath, _ := writeConfig(t, remote.URL)

	stdout := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	opts := &SubmitOptions{
		RootOptions: &RootOptions{Format: "text", ConfigPath: cfgPath},
		ID:          "1042",
		UIDs:        order.NewFixedGenerator("generated-1"),
	}
	require.NoError(t, runSubmit(opts, cmd))

	assert.Equal(t, "Order 1042 accepted (uid generated-1)\n", stdout.String())
	assert.Equal(t, []order.UID{"generated-1"}, remote.Received())
}

func TestBuildOrderNormalizesUID(t *testing.T) {
	opts := &SubmitOptions{ID: "1", UID: "  u1  "}
	o, err := buildOrder(opts, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, order.UID("u1"), o.UID)
	assert.JSONEq(t, `{}`, string(o.Payload))
}
