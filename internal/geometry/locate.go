package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// lineLength returns the planar length of the line in coordinate units.
func lineLength(line *geom.LineString) float64 {
	total := 0.0
	for i := 0; i < line.NumCoords()-1; i++ {
		total += xy.Distance(line.Coord(i), line.Coord(i+1))
	}
	return total
}

// locateAlong returns the distance from the line's start to the projection
// of p onto the line, in planar coordinate units. Among all segments it
// keeps the projection with the smallest perpendicular distance, so points
// sitting on the line locate exactly.
func locateAlong(line *geom.LineString, p geom.Coord) float64 {
	bestPerp := math.MaxFloat64
	bestDist := 0.0
	cum := 0.0

	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		segLen := xy.Distance(a, b)
		if segLen == 0 {
			continue
		}

		t := ((p[0]-a[0])*(b[0]-a[0]) + (p[1]-a[1])*(b[1]-a[1])) / (segLen * segLen)
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		q := geom.Coord{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}

		if d := xy.Distance(p, q); d < bestPerp {
			bestPerp = d
			bestDist = cum + t*segLen
		}
		cum += segLen
	}
	return bestDist
}

// pointAt returns the coordinate at the given distance along the line,
// clamped to the line's extent.
func pointAt(line *geom.LineString, dist float64) geom.Coord {
	if dist <= 0 {
		c := line.Coord(0)
		return geom.Coord{c[0], c[1]}
	}
	cum := 0.0
	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		segLen := xy.Distance(a, b)
		if segLen == 0 {
			continue
		}
		if cum+segLen >= dist {
			t := (dist - cum) / segLen
			return geom.Coord{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
		}
		cum += segLen
	}
	c := line.Coord(line.NumCoords() - 1)
	return geom.Coord{c[0], c[1]}
}

// sliceByDistance cuts the line between two distances along it, keeping any
// interior vertices. It fails on inverted or collapsed ranges so callers can
// drop the offending segment without aborting the batch.
func sliceByDistance(line *geom.LineString, from, to float64) (*geom.LineString, error) {
	const epsilon = 1e-12
	if to-from <= epsilon {
		return nil, eris.Errorf("geometry: slice range [%g, %g] is degenerate", from, to)
	}

	flat := []float64{}
	start := pointAt(line, from)
	flat = append(flat, start[0], start[1])

	cum := 0.0
	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		segLen := xy.Distance(a, b)
		cum += segLen
		if cum > from+epsilon && cum < to-epsilon {
			flat = append(flat, b[0], b[1])
		}
	}

	end := pointAt(line, to)
	flat = append(flat, end[0], end[1])

	if len(flat) < 4 || (len(flat) == 4 && xy.Distance(geom.Coord{flat[0], flat[1]}, geom.Coord{flat[2], flat[3]}) <= epsilon) {
		return nil, eris.Errorf("geometry: slice collapsed to a point at %g", from)
	}
	return geom.NewLineStringFlat(geom.XY, flat), nil
}
