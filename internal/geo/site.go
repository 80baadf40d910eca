// Package geo holds the observation site model and the projection of
// geodetic points into the site's local planar frame.
package geo

import (
	"fmt"
)

// Default noise classification thresholds, in meters of slant distance.
const (
	DefaultNoiseHigh   = 1200.0
	DefaultNoiseMedium = 2500.0
)

// NoiseThresholds bounds the slant distance at closest approach for each
// noise level. A zero field falls back to its default.
type NoiseThresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// Site is a fixed observation point with a cylindrical detection envelope.
// Sites are passed by value and never mutated after construction.
type Site struct {
	Name        string           `json:"name"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	Altitude    float64          `json:"altitude"`     // ground altitude, meters
	Radius      float64          `json:"radius"`       // lateral boundary, meters
	MaxAltitude float64          `json:"max_altitude"` // vertical ceiling, meters
	Noise       *NoiseThresholds `json:"noise,omitempty"`
}

// NoiseThresholds returns the site's thresholds with defaults applied to
// any unset value.
func (s Site) NoiseThresholds() NoiseThresholds {
	t := NoiseThresholds{High: DefaultNoiseHigh, Medium: DefaultNoiseMedium}
	if s.Noise == nil {
		return t
	}
	if s.Noise.High > 0 {
		t.High = s.Noise.High
	}
	if s.Noise.Medium > 0 {
		t.Medium = s.Noise.Medium
	}
	return t
}

// Validate checks that the site describes a usable detection envelope.
func (s Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("site name is required")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("site latitude must be between -90 and 90, got %f", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("site longitude must be between -180 and 180, got %f", s.Longitude)
	}
	if s.Radius < 0 {
		return fmt.Errorf("site radius must be non-negative, got %f", s.Radius)
	}
	if s.MaxAltitude < 0 {
		return fmt.Errorf("site max_altitude must be non-negative, got %f", s.MaxAltitude)
	}
	if s.Noise != nil && (s.Noise.High < 0 || s.Noise.Medium < 0) {
		return fmt.Errorf("noise thresholds must be non-negative, got high=%f medium=%f", s.Noise.High, s.Noise.Medium)
	}
	return nil
}
