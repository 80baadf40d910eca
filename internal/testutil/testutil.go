// Package testutil provides shared test fixtures for the feed and the HTTP
// API.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// State is one aircraft row for StatesBody. Nil fields encode as null.
type State struct {
	ICAO24    string
	Callsign  string
	Longitude *float64
	Latitude  *float64
	Altitude  *float64 // geometric, meters
	Velocity  *float64 // m/s
	TrueTrack *float64 // degrees
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// StatesBody renders a /states/all response holding states in the
// positional row layout.
func StatesBody(t *testing.T, states ...State) string {
	t.Helper()
	rows := make([][]any, 0, len(states))
	for _, s := range states {
		rows = append(rows, []any{
			s.ICAO24, s.Callsign, "Taiwan", nil, nil,
			s.Longitude, s.Latitude, s.Altitude, false,
			s.Velocity, s.TrueTrack, nil, nil, s.Altitude,
			nil, false, 0,
		})
	}
	body, err := json.Marshal(map[string]any{"time": 1717243200, "states": rows})
	if err != nil {
		t.Fatalf("marshal states: %v", err)
	}
	return string(body)
}

// FeedServer starts a server that answers every request with status,
// headers and body. It is closed when the test ends.
func FeedServer(t *testing.T, status int, header http.Header, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if status == http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
