package api

import (
	"math"
	"time"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/cpa"
	"github.com/banshee-data/overflight.report/internal/poller"
	"github.com/banshee-data/overflight.report/internal/units"
)

// PassEventAPI is the wire form of a pass prediction. JSON cannot carry
// infinities, so unknown or never values are null.
type PassEventAPI struct {
	ID           string   `json:"id"`
	Callsign     *string  `json:"callsign"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	Altitude     *float64 `json:"altitude"`
	AltitudeFeet *float64 `json:"altitude_ft"`
	Speed        *float64 `json:"speed"`
	Track        *float64 `json:"track"` // degrees clockwise from north
	ETA          *float64 `json:"eta"`
	Duration     float64  `json:"duration"`
	DMin         *float64 `json:"dmin"`
	Level        string   `json:"level"`
	EntersAt     *float64 `json:"enters_at"`
	ExitsAt      *float64 `json:"exits_at"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// PassEventToAPI converts an event, rendering speed in the given units.
func PassEventToAPI(e cpa.PassEvent, speedUnits string) PassEventAPI {
	out := PassEventAPI{
		ID:       e.Plane.ID,
		Callsign: e.Plane.Callsign,
		X:        e.Plane.X,
		Y:        e.Plane.Y,
		Altitude: e.Plane.Altitude,
		ETA:      finite(e.ETA),
		Duration: e.Duration,
		DMin:     finite(e.DMin),
		Level:    alerting.LevelLabel(e.Level),
		EntersAt: finite(e.EntersAt),
		ExitsAt:  finite(e.ExitsAt),
	}
	if e.Plane.Altitude != nil {
		ft := units.MetersToFeet(*e.Plane.Altitude)
		out.AltitudeFeet = &ft
	}
	if e.Plane.Speed != nil {
		v := units.ConvertSpeed(*e.Plane.Speed, speedUnits)
		out.Speed = &v
	}
	if e.Plane.TrackRad != nil {
		deg := *e.Plane.TrackRad * 180 / math.Pi
		out.Track = &deg
	}
	return out
}

// PassesResponse is the body of /api/passes and of each stream event.
type PassesResponse struct {
	Site            string         `json:"site"`
	Units           string         `json:"units"`
	CompletedAt     *time.Time     `json:"completed_at"`
	NextPollSeconds float64        `json:"next_poll_seconds"`
	Error           string         `json:"error,omitempty"`
	Passes          []PassEventAPI `json:"passes"`
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Stage             alerting.Stage `json:"stage"`
	Title             string         `json:"title"`
	Message           string         `json:"message"`
	Event             *PassEventAPI  `json:"event"`
	Error             string         `json:"error,omitempty"`
	RateLimited       bool           `json:"rate_limited"`
	RetryAfterSeconds float64        `json:"retry_after_seconds,omitempty"`
}

func (s *Server) passesResponse(res poller.Result, ok bool) PassesResponse {
	out := PassesResponse{
		Site:   s.opts.Site.Name,
		Units:  s.opts.Units,
		Passes: []PassEventAPI{},
	}
	if !ok {
		return out
	}
	completed := res.CompletedAt
	out.CompletedAt = &completed
	out.NextPollSeconds = res.NextPoll.Seconds()
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	for _, e := range res.Events {
		out.Passes = append(out.Passes, PassEventToAPI(e, s.opts.Units))
	}
	return out
}

func (s *Server) statusResponse(res poller.Result, ok bool) StatusResponse {
	var nearest *cpa.PassEvent
	if ok {
		nearest = alerting.Nearest(res.Events)
	}
	st := alerting.Evaluate(nearest, s.opts.Thresholds, s.opts.Policy)

	out := StatusResponse{Stage: st.Stage, Title: st.Title, Message: st.Message}
	if nearest != nil {
		ev := PassEventToAPI(*nearest, s.opts.Units)
		out.Event = &ev
	}
	if ok && res.Err != nil {
		out.Error = res.Err.Error()
		if wait, limited := res.RateLimited(); limited {
			out.RateLimited = true
			out.RetryAfterSeconds = wait.Seconds()
		}
	}
	return out
}
