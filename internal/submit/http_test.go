package submit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posync/internal/order"
)

func newTransport(t *testing.T, h http.HandlerFunc) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return tr
}

func TestNewHTTPTransport_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPTransport("  ", nil)
	assert.Error(t, err)
}

func TestHTTPTransport_EncodesOrders(t *testing.T) {
	var got submitRequest
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		_, _ = w.Write([]byte(`{"successful":["u1","u2"]}`))
	})

	orders := []order.PendingOrder{
		{ID: "1", UID: "u1", Payload: []byte(`{"table":4}`)},
		{ID: "2", UID: "u2", Payload: []byte(`null`)},
	}
	res, err := tr.Send(context.Background(), orders)
	require.NoError(t, err)

	require.Len(t, got.Orders, 2)
	assert.Equal(t, order.UID("u1"), got.Orders[0].UID)
	assert.JSONEq(t, `{"table":4}`, string(got.Orders[0].Payload))
	assert.Equal(t, []order.UID{"u1", "u2"}, res.Successful.Sorted())
	assert.Empty(t, res.Failed)
}

func TestHTTPTransport_PartialFailureInBody(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"successful":["u1"],"failed":[{"uid":"u2","reason":"closed"}]}`))
	})

	res, err := tr.Send(context.Background(), pending("u1", "u2"))
	require.NoError(t, err)
	assert.True(t, res.Successful.Has("u1"))
	assert.True(t, res.Failed.Has("u2"))
}

func TestHTTPTransport_StatusMapping(t *testing.T) {
	tests := []struct {
		status      int
		unavailable bool
		rejected    bool
	}{
		{http.StatusBadRequest, false, true},
		{http.StatusConflict, false, true},
		{http.StatusUnprocessableEntity, false, true},
		{http.StatusRequestTimeout, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusServiceUnavailable, true, false},
		{http.StatusGatewayTimeout, true, false},
		{http.StatusInternalServerError, false, false},
		{http.StatusUnauthorized, false, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			tr := newTransport(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			res, err := tr.Send(context.Background(), pending("u1"))
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, IsNetworkUnavailable(err))
			assert.Equal(t, tt.rejected, IsRejected(err))
			if tt.rejected {
				assert.True(t, res.Failed.Has("u1"), "whole batch rejected without a body")
			}
			if !tt.unavailable && !tt.rejected {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.Code)
			}
		})
	}
}

func TestHTTPTransport_RejectionReasons(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"failed":[{"uid":"u2","reason":"unknown item"}]}`))
	})

	res, err := tr.Send(context.Background(), pending("u1", "u2"))
	re, ok := AsRejected(err)
	require.True(t, ok)
	assert.Equal(t, []order.UID{"u2"}, re.UIDs)
	assert.Equal(t, "unknown item", re.Reasons["u2"])
	assert.False(t, res.Failed.Has("u1"))
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(url, nil)
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), pending("u1"))
	require.Error(t, err)
	assert.True(t, IsNetworkUnavailable(err))
}

func TestHTTPTransport_MalformedBodyIsFatal(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := tr.Send(context.Background(), pending("u1"))
	require.Error(t, err)
	assert.False(t, IsNetworkUnavailable(err))
	assert.Contains(t, err.Error(), "decode response")
}
