// Package opensky talks to the OpenSky Network state-vector endpoint: it
// builds bounding-box queries, decodes the positional row format and maps
// rate limiting onto a typed error.
package opensky

import (
	"encoding/json"
	"fmt"
)

// Row positions inside a single OpenSky state vector.
const (
	colICAO24       = 0
	colCallsign     = 1
	colLongitude    = 5
	colLatitude     = 6
	colBaroAltitude = 7
	colVelocity     = 9
	colTrueTrack    = 10
	colGeoAltitude  = 13
)

// StateVector is one aircraft position report. Every field except ICAO24
// may be unknown.
type StateVector struct {
	ICAO24       string   `json:"icao24"`
	Callsign     *string  `json:"callsign"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	BaroAltitude *float64 `json:"baro_altitude"` // meters
	GeoAltitude  *float64 `json:"geo_altitude"`  // meters
	Velocity     *float64 `json:"velocity"`      // m/s over ground
	TrueTrack    *float64 `json:"true_track"`    // degrees clockwise from north
}

// ParseStates decodes a /states/all response body. Rows that are not arrays
// or lack a string identifier are dropped. A payload that is not an object,
// or whose states field is missing or null, decodes to an empty list; only
// malformed JSON is an error.
func ParseStates(body []byte) ([]StateVector, error) {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode states response: %w", err)
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return []StateVector{}, nil
	}
	rows, ok := obj["states"].([]interface{})
	if !ok {
		return []StateVector{}, nil
	}

	out := make([]StateVector, 0, len(rows))
	for _, raw := range rows {
		if sv, ok := parseRow(raw); ok {
			out = append(out, sv)
		}
	}
	return out, nil
}

func parseRow(raw interface{}) (StateVector, bool) {
	row, ok := raw.([]interface{})
	if !ok {
		return StateVector{}, false
	}
	icao, ok := column(row, colICAO24).(string)
	if !ok || icao == "" {
		return StateVector{}, false
	}
	return StateVector{
		ICAO24:       icao,
		Callsign:     stringAt(row, colCallsign),
		Latitude:     numberAt(row, colLatitude),
		Longitude:    numberAt(row, colLongitude),
		BaroAltitude: numberAt(row, colBaroAltitude),
		GeoAltitude:  numberAt(row, colGeoAltitude),
		Velocity:     numberAt(row, colVelocity),
		TrueTrack:    numberAt(row, colTrueTrack),
	}, true
}

func column(row []interface{}, i int) interface{} {
	if i >= len(row) {
		return nil
	}
	return row[i]
}

func numberAt(row []interface{}, i int) *float64 {
	v, ok := column(row, i).(float64)
	if !ok {
		return nil
	}
	return &v
}

func stringAt(row []interface{}, i int) *string {
	v, ok := column(row, i).(string)
	if !ok {
		return nil
	}
	return &v
}
