package geometry

import (
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// earthRadiusMeters is the mean earth radius used to convert angular
// distances to meters.
const earthRadiusMeters = 6371008.8

// metersPerDegreeLat is the approximate ground length of one degree of
// latitude, used to convert meter widths into degree offsets when buffering.
const metersPerDegreeLat = 111320.0

// DistanceMeters returns the geodesic distance between two lng/lat
// coordinates.
func DistanceMeters(a, b geom.Coord) float64 {
	pa := s2.LatLngFromDegrees(a[1], a[0])
	pb := s2.LatLngFromDegrees(b[1], b[0])
	return pa.Distance(pb).Radians() * earthRadiusMeters
}
