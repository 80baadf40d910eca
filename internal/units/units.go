// Package units provides shared constants, validation and conversions for
// the speed units the API can render.
package units

import "strings"

// Unit constants
const (
	MPS   = "mps"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
	Knots = "knots"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH, Knots}

// Length conversions used for altitude reports.
const (
	MetersPerFoot = 0.3048
	FeetPerMeter  = 1 / MetersPerFoot
)

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Feed velocities are ground speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS * 1.9438444924406
	default:
		return speedMPS
	}
}

// MetersToFeet converts an altitude in meters to feet.
func MetersToFeet(m float64) float64 {
	return m * FeetPerMeter
}
