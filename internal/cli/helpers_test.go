package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/store"
)

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeRemote is an order server accepting every order except those in
// rejects. A non-zero status is returned verbatim instead.
type fakeRemote struct {
	*httptest.Server

	mu       sync.Mutex
	received []order.UID
	rejects  map[order.UID]string
	status   int
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	r := &fakeRemote{rejects: map[order.UID]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/orders", r.handleOrders)

	r.Server = httptest.NewServer(mux)
	t.Cleanup(r.Close)
	return r
}

func (r *fakeRemote) reject(uid, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejects[order.UID(uid)] = reason
}

func (r *fakeRemote) respondWith(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *fakeRemote) Received() []order.UID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]order.UID, len(r.received))
	copy(out, r.received)
	return out
}

func (r *fakeRemote) handleOrders(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Orders []struct {
			UID order.UID `json:"uid"`
		} `json:"orders"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}

	type failure struct {
		UID    order.UID `json:"uid"`
		Reason string    `json:"reason"`
	}
	resp := struct {
		Successful []order.UID `json:"successful"`
		Failed     []failure   `json:"failed"`
	}{Successful: []order.UID{}, Failed: []failure{}}

	for _, o := range body.Orders {
		if reason, ok := r.rejects[o.UID]; ok {
			resp.Failed = append(resp.Failed, failure{UID: o.UID, Reason: reason})
			continue
		}
		r.received = append(r.received, o.UID)
		resp.Successful = append(resp.Successful, o.UID)
	}

	status := http.StatusOK
	if len(resp.Failed) > 0 {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeConfig writes a config file pointing at endpoint with a database in
// a temp dir. extra lines are appended verbatim. Returns the config and
// database paths.
func writeConfig(t *testing.T, endpoint string, extra ...string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queue.db")

	lines := []string{
		"database: " + dbPath,
		"endpoint: " + endpoint,
	}
	lines = append(lines, extra...)

	cfgPath := filepath.Join(dir, "posync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return cfgPath, dbPath
}

// seedQueue stores orders u1..un in dbPath, all queued at epoch.
func seedQueue(t *testing.T, dbPath string, uids ...string) {
	t.Helper()
	st, err := store.Open(dbPath, store.WithNow(func() time.Time { return epoch }))
	require.NoError(t, err)
	defer st.Close()

	for _, uid := range uids {
		require.NoError(t, st.Put(context.Background(), order.PendingOrder{
			ID:      order.ID("id-" + uid),
			UID:     order.UID(uid),
			Payload: []byte(`{"total":1250}`),
		}))
	}
}

// queuedUIDs reads the queue in dbPath.
func queuedUIDs(t *testing.T, dbPath string) []order.UID {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	all, err := st.All(context.Background())
	require.NoError(t, err)
	return order.UIDs(all)
}

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
