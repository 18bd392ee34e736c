package reliability

import (
	"strings"
	"time"
)

// ProviderStatus classifies an inference provider response. "Loading" is the
// cold-start case providers report while a model spins up; it is transient
// but distinct from a retryable hard failure.
type ProviderStatus int

const (
	StatusOK ProviderStatus = iota
	StatusLoading
	StatusRetryable
	StatusFailed
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyResponse maps an HTTP status and response body to a provider
// status. Bodies mentioning model loading mark the cold-start case.
func ClassifyResponse(code int, body []byte) ProviderStatus {
	if code >= 200 && code < 300 {
		return StatusOK
	}
	if looksLikeLoading(body) {
		return StatusLoading
	}
	if IsRetryableHTTPStatus(code) {
		return StatusRetryable
	}
	return StatusFailed
}

func looksLikeLoading(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "currently loading") ||
		strings.Contains(s, "is loading") ||
		strings.Contains(s, "estimated_time")
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
