package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/cpa"
	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/monitoring"
	"github.com/banshee-data/overflight.report/internal/opensky"
	"github.com/banshee-data/overflight.report/internal/poller"
	"github.com/banshee-data/overflight.report/internal/units"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

var completed = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeSource is a hand-driven Source.
type fakeSource struct {
	mu     sync.Mutex
	latest poller.Result
	has    bool
	subs   map[string]chan poller.Result
	nextID int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[string]chan poller.Result)}
}

func (f *fakeSource) Latest() (poller.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.has
}

func (f *fakeSource) Subscribe() (string, <-chan poller.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	ch := make(chan poller.Result, 4)
	f.subs[id] = ch
	return id, ch
}

func (f *fakeSource) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
	}
}

func (f *fakeSource) publish(res poller.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest, f.has = res, true
	for _, ch := range f.subs {
		ch <- res
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func ptr[T any](v T) *T { return &v }

func passEvent(id string, eta float64) cpa.PassEvent {
	return cpa.PassEvent{
		Plane: cpa.PlaneState{
			ID:       id,
			Callsign: ptr("EVA" + id),
			X:        -5000,
			Speed:    ptr(100.0),
			TrackRad: ptr(math.Pi / 2),
			Altitude: ptr(3048.0),
		},
		ETA:      eta,
		Duration: 40,
		DMin:     12,
		Level:    cpa.NoiseMedium,
		OK:       true,
		EntersAt: eta,
		ExitsAt:  eta + 40,
	}
}

func testServer(src Source, sites SiteStore) *Server {
	return NewServer(src, sites, Options{
		Site:         geo.Site{Name: "yuanshan", Latitude: 25.0721, Longitude: 121.5222, Radius: 25000, MaxAltitude: 6000},
		Thresholds:   alerting.Thresholds{Warning: 300 * time.Second, Critical: 120 * time.Second},
		Units:        units.Knots,
		PollInterval: 10 * time.Second,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListPasses_BeforeFirstCycle(t *testing.T) {
	mux := testServer(newFakeSource(), nil).ServeMux()
	rec := get(t, mux, "/api/passes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PassesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "yuanshan", body.Site)
	assert.Nil(t, body.CompletedAt)
	assert.NotNil(t, body.Passes)
	assert.Empty(t, body.Passes)
}

func TestListPasses(t *testing.T) {
	src := newFakeSource()
	src.publish(poller.Result{
		Events:      []cpa.PassEvent{passEvent("1", 90), passEvent("2", 400)},
		CompletedAt: completed,
		NextPoll:    10 * time.Second,
	})

	rec := get(t, testServer(src, nil).ServeMux(), "/api/passes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body PassesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Passes, 2)
	assert.Equal(t, 10.0, body.NextPollSeconds)
	assert.True(t, completed.Equal(*body.CompletedAt))

	first := body.Passes[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "EVA1", *first.Callsign)
	assert.InDelta(t, 194.38, *first.Speed, 0.01, "100 m/s in knots")
	assert.InDelta(t, 10000, *first.AltitudeFeet, 1e-6)
	assert.InDelta(t, 90, *first.Track, 1e-9)
	assert.Equal(t, 90.0, *first.ETA)
	assert.Equal(t, "medium", first.Level)
}

func TestPassEventToAPI_NonFinite(t *testing.T) {
	ev := passEvent("x", 0)
	ev.ETA, ev.EntersAt, ev.ExitsAt, ev.DMin = math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)
	ev.OK, ev.Duration, ev.Level = false, 0, cpa.NoiseUnknown
	ev.Plane.Speed, ev.Plane.TrackRad, ev.Plane.Altitude = nil, nil, nil

	out := PassEventToAPI(ev, units.MPS)
	assert.Nil(t, out.ETA)
	assert.Nil(t, out.EntersAt)
	assert.Nil(t, out.ExitsAt)
	assert.Nil(t, out.DMin)
	assert.Nil(t, out.Speed)
	assert.Nil(t, out.AltitudeFeet)
	assert.Equal(t, "estimating", out.Level)

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestShowStatus(t *testing.T) {
	src := newFakeSource()
	h := testServer(src, nil).ServeMux()

	var idle StatusResponse
	require.NoError(t, json.Unmarshal(get(t, h, "/api/status").Body.Bytes(), &idle))
	assert.Equal(t, alerting.StageIdle, idle.Stage)
	assert.Nil(t, idle.Event)

	src.publish(poller.Result{Events: []cpa.PassEvent{passEvent("1", 90)}, CompletedAt: completed})
	var critical StatusResponse
	require.NoError(t, json.Unmarshal(get(t, h, "/api/status").Body.Bytes(), &critical))
	assert.Equal(t, alerting.StageCritical, critical.Stage)
	assert.Contains(t, critical.Title, "T-120 s")
	require.NotNil(t, critical.Event)
	assert.Equal(t, "1", critical.Event.ID)
}

func TestShowStatus_RateLimited(t *testing.T) {
	src := newFakeSource()
	src.publish(poller.Result{
		Events:      []cpa.PassEvent{},
		Err:         opensky.NewRateLimitError(90 * time.Second),
		CompletedAt: completed,
		NextPoll:    90 * time.Second,
	})

	var body StatusResponse
	require.NoError(t, json.Unmarshal(get(t, testServer(src, nil).ServeMux(), "/api/status").Body.Bytes(), &body))
	assert.Equal(t, alerting.StageIdle, body.Stage)
	assert.True(t, body.RateLimited)
	assert.Equal(t, 90.0, body.RetryAfterSeconds)
	assert.Contains(t, body.Error, "rate limited")
}

func TestShowStatus_TransportError(t *testing.T) {
	src := newFakeSource()
	src.publish(poller.Result{Events: []cpa.PassEvent{}, Err: errors.New("dial tcp: timeout"), CompletedAt: completed})

	var body StatusResponse
	require.NoError(t, json.Unmarshal(get(t, testServer(src, nil).ServeMux(), "/api/status").Body.Bytes(), &body))
	assert.False(t, body.RateLimited)
	assert.Equal(t, "dial tcp: timeout", body.Error)
}

func TestShowConfig(t *testing.T) {
	rec := get(t, testServer(newFakeSource(), nil).ServeMux(), "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "knots", body["units"])
	assert.Equal(t, 300.0, body["alert_warning_seconds"])
	assert.Equal(t, 120.0, body["alert_critical_seconds"])
	assert.Equal(t, "raise_warning", body["alert_inversion_policy"])
	assert.Equal(t, 10.0, body["poll_interval_seconds"])
}

func TestMethodNotAllowed(t *testing.T) {
	mux := testServer(newFakeSource(), nil).ServeMux()
	for _, path := range []string{"/api/passes", "/api/status", "/api/stream", "/api/config"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestSites(t *testing.T) {
	registry, err := db.NewDB(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer registry.Close()

	mux := testServer(newFakeSource(), registry).ServeMux()

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"name":"songshan","latitude":25.0697,"longitude":121.5525,"radius":5000,"max_altitude":3000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusConflict, post(`{"name":"songshan","latitude":25,"longitude":121,"radius":1,"max_altitude":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"bad","latitude":95,"longitude":121,"radius":1,"max_altitude":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"typo","lattitude":25}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)

	list := get(t, mux, "/api/sites")
	require.Equal(t, http.StatusOK, list.Code)
	var sites []db.Site
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &sites))
	require.Len(t, sites, 1)
	assert.Equal(t, "songshan", sites[0].Name)
}

func TestSites_NoRegistry(t *testing.T) {
	rec := get(t, testServer(newFakeSource(), nil).ServeMux(), "/api/sites")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamPasses(t *testing.T) {
	src := newFakeSource()
	src.publish(poller.Result{Events: []cpa.PassEvent{passEvent("1", 90)}, CompletedAt: completed})

	srv := httptest.NewServer(LoggingMiddleware(testServer(src, nil).ServeMux()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() PassesResponse {
		t.Helper()
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				require.Equal(t, "passes", name)
				var body PassesResponse
				require.NoError(t, json.Unmarshal([]byte(data), &body))
				return body
			}
		}
	}

	initial := readEvent()
	require.Len(t, initial.Passes, 1)
	assert.Equal(t, "1", initial.Passes[0].ID)

	require.Eventually(t, func() bool { return src.subscribers() == 1 }, time.Second, 5*time.Millisecond)
	src.publish(poller.Result{Events: []cpa.PassEvent{passEvent("2", 30), passEvent("3", 60)}, CompletedAt: completed.Add(10 * time.Second)})

	next := readEvent()
	require.Len(t, next.Passes, 2)
	assert.Equal(t, "2", next.Passes[0].ID)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}
