// Package testutil provides testing utilities for the bulk-fetch engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request seen by the mock server.
type RecordedRequest struct {
	Path   string
	Body   []byte
	Header http.Header
	At     time.Time
}

// MockAPI is a configurable mock listing/detail backend for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest

	// detail scripting
	details  map[int64]json.RawMessage
	failures map[int64][]MockResponse
}

// NewMockAPI creates a new mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		details:  make(map[int64]json.RawMessage),
		failures: make(map[int64][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Body:   body,
			Header: r.Header.Clone(),
			At:     time.Now(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			http.NotFound(w, r)
			return
		}
		handler(w, r.WithContext(withBody(r.Context(), body)))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path. The request body has
// already been read; use RequestBody to get it.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// Requests returns a copy of every request seen, in arrival order.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests made to path.
func (m *MockAPI) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// ServeListing serves a cursor-paginated listing. Page i (0-based) is
// returned for pageToken "" when i == 0 and "page-<i>" otherwise; every page
// but the last carries the next token.
func (m *MockAPI) ServeListing(path, itemsField string, totalCount int, pages [][]json.RawMessage) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PageToken string `json:"pageToken"`
		}
		_ = json.Unmarshal(RequestBody(r), &req)

		idx := 0
		if req.PageToken != "" {
			n, err := strconv.Atoi(req.PageToken[len("page-"):])
			if err != nil || n >= len(pages) {
				http.Error(w, "bad page token", http.StatusBadRequest)
				return
			}
			idx = n
		}

		resp := map[string]any{"totalCount": totalCount}
		items := pages[idx]
		if items == nil {
			items = []json.RawMessage{}
		}
		resp[itemsField] = items
		if idx+1 < len(pages) {
			resp["nextPageToken"] = fmt.Sprintf("page-%d", idx+1)
		}
		writeJSON(w, resp)
	})
}

// ServeDetails serves item details looked up by the numeric request field
// idField. Unknown IDs get 404.
func (m *MockAPI) ServeDetails(path, idField string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.Number
		dec := json.NewDecoder(bytesReader(RequestBody(r)))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		id, err := req[idField].Int64()
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		if queue := m.failures[id]; len(queue) > 0 {
			fail := queue[0]
			m.failures[id] = queue[1:]
			m.mu.Unlock()
			writeResponse(w, fail)
			return
		}
		detail, ok := m.details[id]
		m.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(detail)
	})
}

// SetDetail registers the detail body returned for id.
func (m *MockAPI) SetDetail(id int64, body json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[id] = body
}

// FailDetail queues responses returned for id before its detail is served.
func (m *MockAPI) FailDetail(id int64, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = append(m.failures[id], responses...)
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "service unavailable"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with Retry-After.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewNotFoundResponse creates a terminal 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNotFound, Body: `{"error": "not found"}`}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
