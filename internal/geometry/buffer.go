package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// DefaultBufferMeters is the corridor half-width used to capture parcels
// fronting a block.
const DefaultBufferMeters = 50.0

// BufferCorridor expands a segment centerline into a flat-capped corridor
// polygon extending the given distance to each side. The line's lng/lat
// coordinates are projected onto a locally conformal plane at the segment's
// latitude, offset along per-vertex normals, and unprojected.
func BufferCorridor(line *geom.LineString, meters float64) (*geom.Polygon, error) {
	if line == nil || line.NumCoords() < 2 {
		return nil, eris.New("geometry: cannot buffer degenerate line")
	}
	if meters <= 0 {
		meters = DefaultBufferMeters
	}

	// Local planar frame: shrink longitude by cos(lat) so both axes are in
	// degree-latitude units.
	lat0 := line.Coord(0)[1]
	k := math.Cos(lat0 * math.Pi / 180)
	if k < 1e-6 {
		return nil, eris.Errorf("geometry: cannot buffer near the pole (lat %g)", lat0)
	}
	w := meters / metersPerDegreeLat

	pts := make([][2]float64, 0, line.NumCoords())
	for i := 0; i < line.NumCoords(); i++ {
		c := line.Coord(i)
		p := [2]float64{c[0] * k, c[1]}
		// Collapse repeated vertices so normals stay finite.
		if len(pts) > 0 && p == pts[len(pts)-1] {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 2 {
		return nil, eris.New("geometry: line collapsed to a point")
	}

	normals := vertexNormals(pts)

	// Left side forward, right side backward, closed.
	flat := make([]float64, 0, (len(pts)*2+1)*2)
	for i, p := range pts {
		flat = append(flat, (p[0]+normals[i][0]*w)/k, p[1]+normals[i][1]*w)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		flat = append(flat, (p[0]-normals[i][0]*w)/k, p[1]-normals[i][1]*w)
	}
	flat = append(flat, flat[0], flat[1])

	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}), nil
}

// vertexNormals returns a unit normal per vertex: the segment normal at the
// ends, the normalized average of adjacent segment normals in between.
func vertexNormals(pts [][2]float64) [][2]float64 {
	segNormals := make([][2]float64, len(pts)-1)
	for i := 0; i < len(pts)-1; i++ {
		dx := pts[i+1][0] - pts[i][0]
		dy := pts[i+1][1] - pts[i][1]
		length := math.Hypot(dx, dy)
		segNormals[i] = [2]float64{-dy / length, dx / length}
	}

	normals := make([][2]float64, len(pts))
	normals[0] = segNormals[0]
	normals[len(pts)-1] = segNormals[len(segNormals)-1]
	for i := 1; i < len(pts)-1; i++ {
		nx := segNormals[i-1][0] + segNormals[i][0]
		ny := segNormals[i-1][1] + segNormals[i][1]
		length := math.Hypot(nx, ny)
		if length < 1e-12 {
			// 180-degree turnback; either side's normal works.
			normals[i] = segNormals[i]
			continue
		}
		normals[i] = [2]float64{nx / length, ny / length}
	}
	return normals
}

// Buffer fills in the corridor polygon and centroid for each block. Blocks
// whose corridor cannot be built are dropped with a warning; the rest of the
// batch continues.
func Buffer(blocks []Block, meters float64) []Block {
	log := zap.L().With(zap.String("component", "geometry.buffer"))

	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		poly, err := BufferCorridor(b.Line, meters)
		if err != nil {
			log.Warn("dropping block with unbufferable corridor",
				zap.String("block", b.ID),
				zap.Error(err),
			)
			continue
		}
		b.Corridor = poly
		b.Centroid = ringCentroid(poly.LinearRing(0).FlatCoords())
		out = append(out, b)
	}
	return out
}

// ringCentroid computes the area centroid of a closed ring given as flat XY
// coordinates, falling back to the first vertex for zero-area rings.
func ringCentroid(flat []float64) geom.Coord {
	var area, cx, cy float64
	for i := 0; i+3 < len(flat); i += 2 {
		x0, y0 := flat[i], flat[i+1]
		x1, y1 := flat[i+2], flat[i+3]
		cross := x0*y1 - x1*y0
		area += cross
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
	}
	if math.Abs(area) < 1e-18 {
		return geom.Coord{flat[0], flat[1]}
	}
	area *= 0.5
	return geom.Coord{cx / (6 * area), cy / (6 * area)}
}
