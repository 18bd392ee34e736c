package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestClassifyResponse(t *testing.T) {
	if got := ClassifyResponse(200, nil); got != StatusOK {
		t.Fatalf("200 = %v, want StatusOK", got)
	}
	if got := ClassifyResponse(503, []byte(`{"error":"Model org/x is currently loading","estimated_time":20}`)); got != StatusLoading {
		t.Fatalf("loading body = %v, want StatusLoading", got)
	}
	if got := ClassifyResponse(502, []byte("bad gateway")); got != StatusRetryable {
		t.Fatalf("502 = %v, want StatusRetryable", got)
	}
	if got := ClassifyResponse(401, []byte("unauthorized")); got != StatusFailed {
		t.Fatalf("401 = %v, want StatusFailed", got)
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	cap := 800 * time.Millisecond

	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 = %v, want cap %v", got, cap)
	}
}
