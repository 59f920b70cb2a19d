package geometry

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/model"
)

// ParcelFeature pairs a parcel record with its source geometry. Geometry may
// be nil, in which case the parcel's own lng/lat is used as the
// representative point.
type ParcelFeature struct {
	Parcel   model.Parcel
	Geometry geom.T
}

// AssignParcels assigns each parcel to the first block whose buffered
// corridor contains its representative point. Buffered corridors may
// overlap; first match in block input order wins, deliberately, because
// changing the precedence rule would change historical block membership.
// Parcels matching no corridor are dropped from every membership list; the
// returned count surfaces how many were dropped.
func AssignParcels(features []ParcelFeature, blocks []Block) (map[string][]model.Parcel, int) {
	log := zap.L().With(zap.String("component", "geometry.join"))

	memberships := make(map[string][]model.Parcel)
	unmatched := 0

	for _, f := range features {
		pt, ok := RepresentativePoint(f)
		if !ok {
			log.Debug("parcel has no usable geometry", zap.String("parcel", f.Parcel.ID))
			unmatched++
			continue
		}

		assigned := false
		for _, b := range blocks {
			if b.Corridor == nil {
				continue
			}
			if xy.IsPointInRing(geom.XY, pt, b.Corridor.LinearRing(0).FlatCoords()) {
				memberships[b.ID] = append(memberships[b.ID], f.Parcel)
				assigned = true
				break
			}
		}
		if !assigned {
			unmatched++
		}
	}
	return memberships, unmatched
}

// RepresentativePoint returns the point used to locate a parcel: the point
// itself for point geometries, the area centroid of the outer ring for
// polygonal geometries, and the parcel's recorded lng/lat otherwise.
func RepresentativePoint(f ParcelFeature) (geom.Coord, bool) {
	switch g := f.Geometry.(type) {
	case *geom.Point:
		return g.Coords(), true
	case *geom.Polygon:
		if g.NumLinearRings() > 0 {
			return ringCentroid(g.LinearRing(0).FlatCoords()), true
		}
	case *geom.MultiPolygon:
		if g.NumPolygons() > 0 && g.Polygon(0).NumLinearRings() > 0 {
			return ringCentroid(g.Polygon(0).LinearRing(0).FlatCoords()), true
		}
	}
	if f.Parcel.Longitude != 0 || f.Parcel.Latitude != 0 {
		return geom.Coord{f.Parcel.Longitude, f.Parcel.Latitude}, true
	}
	return nil, false
}
