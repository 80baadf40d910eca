// Package cpa predicts whether an aircraft on a straight constant-velocity
// path will cross an observation site's detection envelope, and when.
package cpa

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/overflight.report/internal/geo"
)

// minSpeed keeps the time computations finite for stationary reports.
const minSpeed = 1e-6

// NoiseLevel classifies the expected ground noise exposure of a pass.
type NoiseLevel string

const (
	NoiseUnknown NoiseLevel = ""
	NoiseHigh    NoiseLevel = "high"
	NoiseMedium  NoiseLevel = "medium"
	NoiseLow     NoiseLevel = "low"
)

// PlaneState is an aircraft position in the site's local frame. Nil
// pointers mean the value was not reported.
type PlaneState struct {
	ID       string   `json:"id"`
	Callsign *string  `json:"callsign,omitempty"`
	X        float64  `json:"x"` // meters east of the site
	Y        float64  `json:"y"` // meters north of the site
	Speed    *float64 `json:"speed,omitempty"`
	TrackRad *float64 `json:"track_rad,omitempty"` // clockwise from north
	Altitude *float64 `json:"altitude,omitempty"`
}

// Position returns the plane's local position vector.
func (p PlaneState) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Name returns the callsign when known, otherwise the aircraft identifier.
func (p PlaneState) Name() string {
	if p.Callsign != nil && *p.Callsign != "" {
		return *p.Callsign
	}
	return p.ID
}

// PassEvent is the predicted crossing of the detection envelope.
//
// Times are seconds from now. When OK is false the plane is not predicted
// to be inside the envelope at or after the present: ETA, EntersAt and
// ExitsAt are +Inf and Duration is 0.
type PassEvent struct {
	Plane    PlaneState
	ETA      float64
	Duration float64
	DMin     float64 // closest approach to the site, meters; +Inf when unknown
	Level    NoiseLevel
	OK       bool
	EntersAt float64
	ExitsAt  float64
}

// Active reports whether the plane is inside the radius right now.
func (e PassEvent) Active() bool {
	return e.OK && e.ETA <= 0
}

// Remaining returns the seconds left before the plane leaves the radius.
func (e PassEvent) Remaining() float64 {
	return e.Duration + math.Min(e.ETA, 0)
}

func failedEvent(plane PlaneState, dmin float64) PassEvent {
	return PassEvent{
		Plane:    plane,
		ETA:      math.Inf(1),
		Duration: 0,
		DMin:     dmin,
		Level:    NoiseUnknown,
		OK:       false,
		EntersAt: math.Inf(1),
		ExitsAt:  math.Inf(1),
	}
}

// ComputePassEvent extrapolates the plane along its track and intersects
// the path with the site's radius and altitude ceiling.
func ComputePassEvent(site geo.Site, plane PlaneState) PassEvent {
	if plane.Speed == nil || plane.TrackRad == nil {
		return failedEvent(plane, math.Inf(1))
	}

	u := r2.Vec{X: math.Sin(*plane.TrackRad), Y: math.Cos(*plane.TrackRad)}
	v := math.Max(*plane.Speed, minSpeed)
	r := plane.Position()

	tCPA := -r2.Dot(r, u) / v
	closest := r2.Add(r, r2.Scale(v*tCPA, u))
	dmin := r2.Norm(closest)

	if dmin > site.Radius || (plane.Altitude != nil && *plane.Altitude > site.MaxAltitude) {
		return failedEvent(plane, dmin)
	}

	toBorder := math.Sqrt(math.Max(0, site.Radius*site.Radius-dmin*dmin)) / v
	t1 := tCPA - toBorder
	t2 := tCPA + toBorder
	if t2 < 0 {
		return failedEvent(plane, dmin)
	}

	eta := math.Max(t1, 0)
	exits := math.Max(t2, 0)
	return PassEvent{
		Plane:    plane,
		ETA:      eta,
		Duration: exits - eta,
		DMin:     dmin,
		Level:    classifyNoise(site, plane.Altitude, dmin),
		OK:       true,
		EntersAt: eta,
		ExitsAt:  exits,
	}
}

// classifyNoise grades the slant distance between the ground site and the
// plane at closest approach.
func classifyNoise(site geo.Site, altitude *float64, dmin float64) NoiseLevel {
	if altitude == nil {
		return NoiseUnknown
	}
	t := site.NoiseThresholds()
	dg := math.Hypot(dmin, *altitude-site.Altitude)
	switch {
	case dg < t.High:
		return NoiseHigh
	case dg < t.Medium:
		return NoiseMedium
	default:
		return NoiseLow
	}
}
