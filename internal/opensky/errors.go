package opensky

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MinRetryAfter is the shortest backoff honoured after a 429.
const MinRetryAfter = 60 * time.Second

// maxRetrySeconds caps absurd header values before conversion.
const maxRetrySeconds = 24 * 60 * 60

// RateLimitError reports that the feed refused the request with HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

// NewRateLimitError floors d at MinRetryAfter.
func NewRateLimitError(d time.Duration) *RateLimitError {
	if d < MinRetryAfter {
		d = MinRetryAfter
	}
	return &RateLimitError{RetryAfter: d}
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("opensky rate limited, retry after %ds", int64(e.RetryAfter/time.Second))
}

// StatusError is any other non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "opensky request failed: " + e.Status
	}
	return fmt.Sprintf("opensky request failed: status %d", e.StatusCode)
}

// ParseRetryAfter reads the retry delay from Retry-After or
// X-Rate-Limit-Retry-After-Seconds. Both integer seconds and HTTP-dates are
// accepted; a missing or unparseable value yields MinRetryAfter. The result
// is never below MinRetryAfter.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	for _, key := range []string{"Retry-After", "X-Rate-Limit-Retry-After-Seconds"} {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			continue
		}
		if d, ok := parseDelay(v, now); ok {
			return NewRateLimitError(d).RetryAfter
		}
	}
	return MinRetryAfter
}

func parseDelay(v string, now time.Time) (time.Duration, bool) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, true
		}
		if secs > maxRetrySeconds {
			secs = maxRetrySeconds
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return at.Sub(now), true
	}
	return 0, false
}
