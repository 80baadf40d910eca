package opensky

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewRateLimitError_Floor(t *testing.T) {
	assert.Equal(t, 60*time.Second, NewRateLimitError(15*time.Second).RetryAfter)
	assert.Equal(t, 60*time.Second, NewRateLimitError(0).RetryAfter)
	assert.Equal(t, 90*time.Second, NewRateLimitError(90*time.Second).RetryAfter)
}

func TestRateLimitError_As(t *testing.T) {
	wrapped := fmt.Errorf("cycle: %w", NewRateLimitError(2*time.Minute))

	var rle *RateLimitError
	if assert.True(t, errors.As(wrapped, &rle)) {
		assert.Equal(t, 2*time.Minute, rle.RetryAfter)
	}
	assert.Contains(t, wrapped.Error(), "retry after 120s")
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{"missing", nil, 60 * time.Second},
		{"short delay is floored", map[string]string{"Retry-After": "15"}, 60 * time.Second},
		{"long delay kept", map[string]string{"Retry-After": "300"}, 300 * time.Second},
		{"opensky header", map[string]string{"X-Rate-Limit-Retry-After-Seconds": "3600"}, time.Hour},
		{"retry-after wins", map[string]string{"Retry-After": "120", "X-Rate-Limit-Retry-After-Seconds": "900"}, 120 * time.Second},
		{"garbage falls through", map[string]string{"Retry-After": "soon", "X-Rate-Limit-Retry-After-Seconds": "240"}, 240 * time.Second},
		{"negative", map[string]string{"Retry-After": "-5"}, 60 * time.Second},
		{"http date", map[string]string{"Retry-After": now.Add(5 * time.Minute).Format(http.TimeFormat)}, 5 * time.Minute},
		{"http date in the past", map[string]string{"Retry-After": now.Add(-time.Minute).Format(http.TimeFormat)}, 60 * time.Second},
		{"absurd value capped", map[string]string{"Retry-After": "999999999999"}, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(http.Header)
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ParseRetryAfter(h, now))
		})
	}
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "opensky request failed: 503 Service Unavailable",
		(&StatusError{StatusCode: 503, Status: "503 Service Unavailable"}).Error())
	assert.Equal(t, "opensky request failed: status 502", (&StatusError{StatusCode: 502}).Error())
}
