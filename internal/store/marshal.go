package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// queuedAtLayout is the TEXT layout of queued_at. Always UTC so that the
// column sorts lexically in time order.
const queuedAtLayout = time.RFC3339Nano

// marshalPayload converts the opaque order payload to TEXT for storage.
func marshalPayload(p json.RawMessage) string {
	if len(p) == 0 {
		return "null"
	}
	return string(p)
}

// unmarshalPayload returns the stored payload as raw JSON.
func unmarshalPayload(data string) json.RawMessage {
	if data == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}

func marshalTime(t time.Time) string {
	return t.UTC().Format(queuedAtLayout)
}

func unmarshalTime(data string) (time.Time, error) {
	t, err := time.Parse(queuedAtLayout, data)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse queued_at %q: %w", data, err)
	}
	return t, nil
}
