package geodata

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// queryResponse is the feature service query envelope. The service reports
// errors in-band with HTTP 200, so Error must be checked on every page.
type queryResponse struct {
	Features              []feature     `json:"features"`
	ExceededTransferLimit bool          `json:"exceededTransferLimit"`
	Error                 *serviceError `json:"error"`
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *esriGeometry  `json:"geometry"`
}

// esriGeometry is the union of the point, polyline, and polygon encodings.
// Exactly one of X/Y, Paths, or Rings is populated.
type esriGeometry struct {
	X     *float64      `json:"x"`
	Y     *float64      `json:"y"`
	Paths [][][]float64 `json:"paths"`
	Rings [][][]float64 `json:"rings"`
}

// toGeom converts to the matching go-geom type in EPSG:4326.
func (g *esriGeometry) toGeom() (geom.T, error) {
	switch {
	case g == nil:
		return nil, eris.New("geodata: feature has no geometry")
	case g.X != nil && g.Y != nil:
		return geom.NewPointFlat(geom.XY, []float64{*g.X, *g.Y}).SetSRID(4326), nil
	case len(g.Paths) > 0:
		return g.toLineString()
	case len(g.Rings) > 0:
		return g.toPolygon()
	default:
		return nil, eris.New("geodata: empty geometry")
	}
}

// toLineString converts a polyline, keeping the longest path when the
// feature is split into multiple parts.
func (g *esriGeometry) toLineString() (*geom.LineString, error) {
	if g == nil || len(g.Paths) == 0 {
		return nil, eris.New("geodata: feature is not a polyline")
	}

	best := g.Paths[0]
	for _, p := range g.Paths[1:] {
		if len(p) > len(best) {
			best = p
		}
	}
	if len(best) < 2 {
		return nil, eris.New("geodata: polyline has fewer than two points")
	}

	flat := make([]float64, 0, len(best)*2)
	for _, pt := range best {
		if len(pt) < 2 {
			return nil, eris.New("geodata: malformed polyline coordinate")
		}
		flat = append(flat, pt[0], pt[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326), nil
}

// toPolygon converts rings to a polygon. The first ring is the outer
// boundary; remaining rings become holes.
func (g *esriGeometry) toPolygon() (*geom.Polygon, error) {
	if len(g.Rings) == 0 {
		return nil, eris.New("geodata: feature is not a polygon")
	}

	var flat []float64
	ends := make([]int, 0, len(g.Rings))
	for _, ring := range g.Rings {
		if len(ring) < 4 {
			return nil, eris.New("geodata: ring has fewer than four points")
		}
		for _, pt := range ring {
			if len(pt) < 2 {
				return nil, eris.New("geodata: malformed ring coordinate")
			}
			flat = append(flat, pt[0], pt[1])
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends).SetSRID(4326), nil
}
