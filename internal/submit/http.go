package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/roach88/posync/internal/order"
)

// wireOrder is one order on the wire.
type wireOrder struct {
	ID      order.ID        `json:"id"`
	UID     order.UID       `json:"uid"`
	Payload json.RawMessage `json:"payload"`
}

type submitRequest struct {
	Orders []wireOrder `json:"orders"`
}

type wireFailure struct {
	UID    order.UID `json:"uid"`
	Reason string    `json:"reason,omitempty"`
}

type submitResponse struct {
	Successful []order.UID    `json:"successful"`
	Failed     []wireFailure `json:"failed"`
}

// StatusError is a response status the transport has no mapping for.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status %s", e.Status)
}

// HTTPTransport posts orders as JSON to <BaseURL>/orders.
//
// Response mapping:
//   - 200/201: per-order outcome from the body
//   - 400/409/422: whole batch (or the listed uids) rejected
//   - 408/429/502/503/504: network unavailable
//   - anything else: *StatusError
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport builds a transport for baseURL.
// A nil client gets a 5 second timeout.
func NewHTTPTransport(baseURL string, client *http.Client) (*HTTPTransport, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("submission endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPTransport{baseURL: baseURL, client: client}, nil
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, orders []order.PendingOrder) (Result, error) {
	req := submitRequest{Orders: make([]wireOrder, len(orders))}
	for i, o := range orders {
		req.Orders[i] = wireOrder{ID: o.ID, UID: o.UID, Payload: json.RawMessage(o.Payload)}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode orders: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, Classify(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var out submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// A body cut short is a dropped connection, not a bad reply
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return Result{}, Unavailable(err)
			}
			return Result{}, fmt.Errorf("decode response: %w", err)
		}
		return out.result(), nil

	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		var out submitResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		res := out.result()
		if len(res.Failed) == 0 {
			for _, o := range orders {
				res.Failed.Add(o.UID)
			}
		}
		return res, out.rejected(res.Failed)

	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Result{}, Unavailable(&StatusError{Code: resp.StatusCode, Status: resp.Status})

	default:
		return Result{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

func (r submitResponse) result() Result {
	res := Result{Successful: NewUIDSet(r.Successful...), Failed: UIDSet{}}
	for _, f := range r.Failed {
		res.Failed.Add(f.UID)
	}
	return res
}

func (r submitResponse) rejected(failed UIDSet) *RejectedError {
	reasons := make(map[order.UID]string, len(r.Failed))
	for _, f := range r.Failed {
		if f.Reason != "" {
			reasons[f.UID] = f.Reason
		}
	}
	return &RejectedError{UIDs: failed.Sorted(), Reasons: reasons}
}
