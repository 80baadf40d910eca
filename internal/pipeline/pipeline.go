// Package pipeline turns raw feed reports into ranked pass predictions for
// a single observation site.
package pipeline

import (
	"sort"
	"strings"

	"github.com/banshee-data/overflight.report/internal/cpa"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/opensky"
)

// NormalizeStateVector projects a report into the site frame. It reports
// false when the report has no usable position.
func NormalizeStateVector(site geo.Site, sv opensky.StateVector) (cpa.PlaneState, bool) {
	if sv.Latitude == nil || sv.Longitude == nil {
		return cpa.PlaneState{}, false
	}

	pos := geo.Project(site, geo.Point{Latitude: *sv.Latitude, Longitude: *sv.Longitude})
	plane := cpa.PlaneState{
		ID:       sv.ICAO24,
		Callsign: trimCallsign(sv.Callsign),
		X:        pos.X,
		Y:        pos.Y,
		Speed:    sv.Velocity,
		Altitude: altitude(sv),
	}
	if sv.TrueTrack != nil {
		rad := geo.Radians(*sv.TrueTrack)
		plane.TrackRad = &rad
	}
	return plane, true
}

// ProcessReports computes a pass event per report and returns only the
// predicted passes, soonest first. Reports with equal ETA keep their input
// order.
func ProcessReports(site geo.Site, reports []opensky.StateVector) []cpa.PassEvent {
	events := make([]cpa.PassEvent, 0, len(reports))
	for _, sv := range reports {
		plane, ok := NormalizeStateVector(site, sv)
		if !ok {
			continue
		}
		ev := cpa.ComputePassEvent(site, plane)
		if !ev.OK {
			continue
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ETA < events[j].ETA
	})
	return events
}

func trimCallsign(cs *string) *string {
	if cs == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*cs)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// altitude prefers geometric over barometric height.
func altitude(sv opensky.StateVector) *float64 {
	if sv.GeoAltitude != nil {
		return sv.GeoAltitude
	}
	return sv.BaroAltitude
}
