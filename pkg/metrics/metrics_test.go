package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bulkfetch_metrics_test_total",
	Help: "Counter registered by the metrics package tests",
})

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	Router(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got %q", w.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	testCounter.Inc()

	w := httptest.NewRecorder()
	Router(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bulkfetch_metrics_test_total") {
		t.Error("Expected registered counter in /metrics output")
	}
}

func TestRouter_Status(t *testing.T) {
	tests := []struct {
		name   string
		status StatusFunc
		want   string
	}{
		{name: "no status func", status: nil, want: "{}"},
		{name: "snapshot", status: func() any { return map[string]int{"done": 3} }, want: `{"done":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Router(tt.status).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var got, want any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			_ = json.Unmarshal([]byte(tt.want), &want)
			gotB, _ := json.Marshal(got)
			wantB, _ := json.Marshal(want)
			if string(gotB) != string(wantB) {
				t.Errorf("body = %s, want %s", gotB, wantB)
			}
		})
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	w := httptest.NewRecorder()
	Router(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	addr, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %q", body)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	s := NewServer("127.0.0.1:-1", nil)
	if _, err := s.Start(); err == nil {
		t.Error("expected bind error")
	}
}
