package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Value string `json:"value"`
	}
	client := NewClient()
	if err := client.GetJSON(context.Background(), "test", server.URL, time.Second, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Value != "ok" {
		t.Errorf("got %q, want %q", out.Value, "ok")
	}
}

func TestGetJSON_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	var out struct{}
	err := NewClient().GetJSON(context.Background(), "slow", server.URL, 20*time.Millisecond, &out)

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Provider != "slow" {
		t.Errorf("provider = %q, want %q", timeout.Provider, "slow")
	}
}

func TestGetJSON_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	var out struct{}
	err := NewClient().GetJSON(context.Background(), "test", server.URL, time.Second, &out)

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", transport.StatusCode)
	}
}

func TestGetJSON_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out struct{}
	err := NewClient().GetJSON(context.Background(), "test", server.URL, time.Second, &out)

	var parse *ParseError
	if !errors.As(err, &parse) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestGetJSONRetry_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var out struct{}
	policy := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}
	if err := NewClient().GetJSONRetry(context.Background(), "test", server.URL, time.Second, policy, &out); err != nil {
		t.Fatalf("GetJSONRetry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
}

func TestGetJSONRetry_NoRetryOn4xx(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer server.Close()

	var out struct{}
	policy := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}
	err := NewClient().GetJSONRetry(context.Background(), "test", server.URL, time.Second, policy, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx must not retry: got %d calls", calls)
	}
}

func TestGetJSONRetry_ExhaustsAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	var out struct{}
	policy := RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond}
	err := NewClient().GetJSONRetry(context.Background(), "test", server.URL, time.Second, policy, &out)

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("got %d calls, want 3 (1 + 2 retries)", calls)
	}
}
