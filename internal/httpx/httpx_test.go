package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	var out map[string]any
	if _, err := client.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoJSONClassifiesStructuredErrorAsBusinessRule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient balance"}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 0)
	_, err := client.GetJSON(context.Background(), srv.URL, &map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeBusinessRule {
		t.Fatalf("expected business rule code, got %v", err)
	}
	if typed.Message != "insufficient balance" {
		t.Fatalf("expected upstream message preserved, got %q", typed.Message)
	}
}

func TestDoJSONClassifiesUnstructured4xxAsInfrastructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 0)
	_, err := client.GetJSON(context.Background(), srv.URL, &map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if typed, ok := clierr.As(err); !ok || typed.Code != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable code, got %v", err)
	}
}

func TestDoJSONClassifiesMalformedBodyAsInfrastructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"truncated":`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 0)
	_, err := client.GetJSON(context.Background(), srv.URL, &map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if typed, ok := clierr.As(err); !ok || typed.Code != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable code, got %v", err)
	}
}

func TestDoJSONNetworkFailure(t *testing.T) {
	client := New(500*time.Millisecond, 0)
	_, err := client.GetJSON(context.Background(), "http://127.0.0.1:1/never", &map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if typed, ok := clierr.As(err); !ok || typed.Code != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable code, got %v", err)
	}
}
