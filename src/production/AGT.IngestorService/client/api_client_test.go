package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL, secret string) *APIClient {
	c := NewAPIClient(baseURL, secret)
	c.retryDelay = 5 * time.Millisecond
	return c
}

func TestPushTelemetrySendsSecretAndBatch(t *testing.T) {
	var gotSecret string
	var gotBatch TelemetryBatchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/internal/telemetry" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotSecret = r.Header.Get(InternalSecretHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotBatch); err != nil {
			t.Errorf("decoding batch: %v", err)
		}
		json.NewEncoder(w).Encode(TelemetryBatchResponse{Accepted: len(gotBatch.Payloads)})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "s3cret")
	payloads := []map[string]interface{}{
		{"mac_address": "aa:bb", "temperature": 19.5},
		{"mac_address": "cc:dd", "humidity": 60.0},
	}

	resp, err := c.PushTelemetry(context.Background(), payloads)
	if err != nil {
		t.Fatalf("PushTelemetry: %v", err)
	}
	if gotSecret != "s3cret" {
		t.Fatalf("secret header = %q, want s3cret", gotSecret)
	}
	if len(gotBatch.Payloads) != 2 {
		t.Fatalf("server received %d payloads, want 2", len(gotBatch.Payloads))
	}
	if resp.Accepted != 2 {
		t.Fatalf("accepted = %d, want 2", resp.Accepted)
	}
}

func TestPushTelemetryRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(TelemetryBatchResponse{Accepted: 1})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "s3cret")

	resp, err := c.PushTelemetry(context.Background(), []map[string]interface{}{{"mac_address": "aa:bb"}})
	if err != nil {
		t.Fatalf("PushTelemetry: %v", err)
	}
	if resp.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", resp.Accepted)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server calls = %d, want 3", got)
	}
}

func TestPushTelemetryGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "s3cret")

	if _, err := c.PushTelemetry(context.Background(), []map[string]interface{}{{"mac_address": "aa:bb"}}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != int32(c.maxRetries+1) {
		t.Fatalf("server calls = %d, want %d", got, c.maxRetries+1)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := &CircuitBreaker{maxFailures: 2, resetTimeout: 10 * time.Millisecond, state: StateClosed}

	if !cb.canExecute() {
		t.Fatal("closed breaker should allow execution")
	}

	cb.onFailure()
	cb.onFailure()
	if cb.canExecute() {
		t.Fatal("breaker should be open after reaching max failures")
	}

	time.Sleep(15 * time.Millisecond)
	if !cb.canExecute() {
		t.Fatal("breaker should allow a probe after the reset timeout")
	}

	cb.onSuccess()
	if cb.state != StateClosed || cb.failureCount != 0 {
		t.Fatalf("breaker not reset after success: state=%v failures=%d", cb.state, cb.failureCount)
	}
}

func TestHealthChecksInternalEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "s3cret")
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if gotPath != "/internal/health" {
		t.Fatalf("health path = %q, want /internal/health", gotPath)
	}

	srv.Close()
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error when API is unreachable")
	}
}
