package geometry

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"go.uber.org/zap"
)

// FindIntersections computes, for each candidate cross street, the first
// point where it crosses the street line. Candidates that never intersect
// are skipped, not failed. Degenerate candidate geometries (fewer than two
// coordinates) are likewise skipped.
func FindIntersections(street Street, candidates []CrossStreet) []Intersection {
	log := zap.L().With(
		zap.String("component", "geometry.intersect"),
		zap.String("street", street.Name),
	)

	if street.Line == nil || street.Line.NumCoords() < 2 {
		log.Warn("street line is degenerate, no intersections computed")
		return nil
	}

	var found []Intersection
	for _, cand := range candidates {
		if cand.Line == nil || cand.Line.NumCoords() < 2 {
			log.Debug("skipping degenerate cross street", zap.String("cross", cand.Name))
			continue
		}
		pt, ok := firstCrossing(street.Line, cand.Line)
		if !ok {
			log.Debug("cross street does not intersect", zap.String("cross", cand.Name))
			continue
		}
		found = append(found, Intersection{
			Point:           pt,
			CrossStreetID:   cand.ID,
			CrossStreetName: cand.Name,
		})
	}
	return found
}

// firstCrossing walks the street's segments in order and returns the first
// intersection point with any segment of the candidate line.
func firstCrossing(street, cand *geom.LineString) (geom.Coord, bool) {
	strategy := lineintersector.RobustLineIntersector{}
	for i := 0; i < street.NumCoords()-1; i++ {
		a0, a1 := street.Coord(i), street.Coord(i+1)
		for j := 0; j < cand.NumCoords()-1; j++ {
			res := lineintersector.LineIntersectsLine(strategy, a0, a1, cand.Coord(j), cand.Coord(j+1))
			if res.HasIntersection() {
				return res.Intersection()[0], true
			}
		}
	}
	return nil, false
}

// OrderAlongLine projects every intersection point onto the street line and
// sorts the intersections ascending by projected distance from the line's
// start. The sort is stable so equal projections keep their input order.
func OrderAlongLine(street *geom.LineString, intersections []Intersection) []Intersection {
	ordered := make([]Intersection, len(intersections))
	copy(ordered, intersections)
	for i := range ordered {
		ordered[i].Distance = locateAlong(street, ordered[i].Point)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Distance < ordered[j].Distance
	})
	return ordered
}
