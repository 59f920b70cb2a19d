// Package geometry detects blocks from street centerlines: it intersects a
// street with its candidate cross streets, orders the intersection points
// along the line, cuts the line into segments, buffers each segment into a
// corridor polygon, and spatially assigns parcels to the enclosing corridor.
// All coordinates are lng/lat (EPSG:4326); thresholds given in meters are
// measured geodesically.
package geometry

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/detroit-blocks/blockline/internal/address"
)

// Sentinel boundary names used when a street has no intersection at one end.
const (
	BoundaryStart = "start"
	BoundaryEnd   = "end"
)

// Street is a named centerline handed in by the geodata collaborator.
type Street struct {
	ID   string
	Name string
	Line *geom.LineString
}

// CrossStreet is a candidate boundary street.
type CrossStreet struct {
	ID   string
	Name string
	Line *geom.LineString
}

// Intersection is one street/cross-street crossing. Distance is the
// projected distance of the point along the street line measured from its
// start, in planar coordinate units; it exists for ordering only.
type Intersection struct {
	Point           geom.Coord
	CrossStreetID   string
	CrossStreetName string
	Distance        float64
}

// Block is one street segment between two bounding cross streets (or a
// sentinel where the physical street end forms the boundary). Corridor and
// Centroid are populated by Buffer.
type Block struct {
	ID        string
	Street    string
	FromCross string
	ToCross   string
	Line      *geom.LineString
	Corridor  *geom.Polygon
	Centroid  geom.Coord
}

// BlockID joins the normalized street and bounding cross-street names. Two
// runs observing the same boundaries must produce the same id.
func BlockID(street, fromCross, toCross string) string {
	return fmt.Sprintf("%s_%s_%s",
		address.Normalize(street),
		address.Normalize(fromCross),
		address.Normalize(toCross),
	)
}
