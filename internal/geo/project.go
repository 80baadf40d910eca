package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// EarthRadiusMeters is the equatorial radius used by the local projection.
const EarthRadiusMeters = 6378137.0

// Point is a geodetic position in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Project maps p into the site's local planar frame: X is meters east of
// the site, Y is meters north.
//
// The mapping is equirectangular around the mean latitude of the two points.
// It is accurate for the tens-of-kilometers radii used for overflight
// detection and degrades toward the poles or over larger distances.
func Project(site Site, p Point) r2.Vec {
	lat0 := Radians(site.Latitude)
	lon0 := Radians(site.Longitude)
	lat := Radians(p.Latitude)
	lon := Radians(p.Longitude)

	meanLat := (lat + lat0) / 2
	return r2.Vec{
		X: (lon - lon0) * math.Cos(meanLat) * EarthRadiusMeters,
		Y: (lat - lat0) * EarthRadiusMeters,
	}
}
