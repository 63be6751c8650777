package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableProviderCode(t *testing.T) {
	if !IsRetryableProviderCode("rate_limited") {
		t.Fatal("rate_limited should be retryable")
	}
	if IsRetryableProviderCode("invalid_request") {
		t.Fatal("invalid_request should not be retryable")
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatal("nil error should not be retryable")
	}
	if IsRetryableError(context.Canceled) {
		t.Fatal("caller cancellation should not be retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatal("deadline expiry should be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Fatal("opaque errors should not be retryable")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 200ms", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
