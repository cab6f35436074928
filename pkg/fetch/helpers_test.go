package fetch

import (
	"context"
	"encoding/json"
	"sync"
)

// recordingCaller answers every call with a fixed payload.
type recordingCaller struct {
	mu       sync.Mutex
	payloads []any
	response json.RawMessage
}

func (c *recordingCaller) Call(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return c.response, nil
}
