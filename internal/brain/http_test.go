package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/voicebridge/voicebridge/internal/reliability"
)

func TestHTTPAdapterRetriesThrottledStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"text\":\"hello \"}\n\ndata: {\"text\":\"again\"}\n\ndata: [DONE]\n")
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)
	var deltas []string
	res, err := a.StreamGenerate(context.Background(), Request{InputText: "hi"}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamGenerate() error = %v", err)
	}
	if res.Text != "hello again" {
		t.Fatalf("Text = %q, want %q", res.Text, "hello again")
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %v, want 2 fragments", deltas)
	}
}

func TestHTTPAdapterGivesUpAfterRetryBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)
	_, err := a.StreamGenerate(context.Background(), Request{InputText: "hi"}, nil)
	if err == nil {
		t.Fatal("StreamGenerate() succeeded against a permanently overloaded endpoint")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("error = %v, want StatusError 503", err)
	}
	if !reliability.IsRetryableError(err) {
		t.Fatalf("IsRetryableError(%v) = false, want true", err)
	}
	if got := hits.Load(); got != httpMaxAttempts {
		t.Fatalf("server hits = %d, want %d", got, httpMaxAttempts)
	}
}

func TestHTTPAdapterDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)
	_, err := a.StreamGenerate(context.Background(), Request{InputText: "hi"}, nil)
	if err == nil {
		t.Fatal("StreamGenerate() succeeded on a 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("error = %v, want the status in the message", err)
	}
	if reliability.IsRetryableError(err) {
		t.Fatalf("IsRetryableError(%v) = true, want false", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hits = %d, want 1", got)
	}
}
