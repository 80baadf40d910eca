package opensky

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/banshee-data/overflight.report/internal/geo"
)

// DefaultStatesURL is the public anonymous endpoint.
const DefaultStatesURL = "https://opensky-network.org/api/states/all"

const (
	metersPerDegreeLat = 111320.0
	minLonScale        = 1e-6
)

// BoundingBox is the latitude/longitude window sent with a states query.
type BoundingBox struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// SiteBoundingBox returns the box spanning Radius meters either side of the
// site centre. Negative radii collapse to a point.
func SiteBoundingBox(site geo.Site) BoundingBox {
	r := math.Max(0, site.Radius)
	dLat := r / metersPerDegreeLat
	lonScale := math.Max(math.Cos(geo.Radians(site.Latitude))*metersPerDegreeLat, minLonScale)
	dLon := r / lonScale
	return BoundingBox{
		LatMin: site.Latitude - dLat,
		LatMax: site.Latitude + dLat,
		LonMin: site.Longitude - dLon,
		LonMax: site.Longitude + dLon,
	}
}

// BuildStatesURL appends the site's bounding box to base. An empty base uses
// DefaultStatesURL.
func BuildStatesURL(base string, site geo.Site) (string, error) {
	if base == "" {
		base = DefaultStatesURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse feed url %q: %w", base, err)
	}
	box := SiteBoundingBox(site)
	q := u.Query()
	q.Set("lamin", formatCoord(box.LatMin))
	q.Set("lamax", formatCoord(box.LatMax))
	q.Set("lomin", formatCoord(box.LonMin))
	q.Set("lomax", formatCoord(box.LonMax))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
