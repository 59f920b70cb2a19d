package ingest

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/geometry"
)

// streetNameFields are the DBF attribute names tried, in order, for a street
// centerline's display name.
var streetNameFields = []string{"street_name", "fullname", "full_name", "st_name", "name"}

// ReadParcelShapefile reads parcel features (attributes plus geometry) from
// a shapefile. Shapes that cannot be converted are skipped with a warning.
func ReadParcelShapefile(path string) ([]geometry.ParcelFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	log := zap.L().With(zap.String("component", "ingest.shapefile"), zap.String("path", path))

	fieldIdx := dbfFieldIndex(reader)
	attr := func(field string) string {
		for _, alias := range columnAliases[field] {
			if i, ok := fieldIdx[alias]; ok {
				return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			}
		}
		return ""
	}

	var features []geometry.ParcelFeature
	skipped := 0
	for reader.Next() {
		n, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		feature := geometry.ParcelFeature{Geometry: g}
		feature.Parcel.ID = attr("id")
		feature.Parcel.Address = attr("address")
		feature.Parcel.PropertyClass = attr("property_class")
		feature.Parcel.Taxpayer = attr("taxpayer")
		if feature.Parcel.ID == "" {
			log.Debug("parcel shape has no id attribute", zap.Int("shape", n))
		}
		features = append(features, feature)
	}
	if skipped > 0 {
		log.Warn("skipped unconvertible parcel shapes", zap.Int("skipped", skipped))
	}
	return features, nil
}

// ReadStreetShapefile reads street centerlines from a shapefile. Multi-part
// polylines contribute their longest part as the centerline.
func ReadStreetShapefile(path string) ([]geometry.Street, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := dbfFieldIndex(reader)
	nameOf := func() string {
		for _, f := range streetNameFields {
			if i, ok := fieldIdx[f]; ok {
				return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			}
		}
		return ""
	}
	idOf := func() string {
		for _, f := range []string{"object_id", "objectid", "id"} {
			if i, ok := fieldIdx[f]; ok {
				return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			}
		}
		return ""
	}

	var streets []geometry.Street
	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			continue
		}
		line := longestPart(pl)
		if line == nil {
			continue
		}
		streets = append(streets, geometry.Street{ID: idOf(), Name: nameOf(), Line: line})
	}
	return streets, nil
}

func dbfFieldIndex(reader *shp.Reader) map[string]int {
	fields := reader.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(name)] = i
	}
	return idx
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Returns nil for
// unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.PolyLine:
		return longestPart(s)
	case *shp.Polygon:
		return polygonToGeom(s)
	default:
		return nil
	}
}

// longestPart returns the longest part of a polyline as a LineString.
func longestPart(pl *shp.PolyLine) *geom.LineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	var best []float64
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}
		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		if len(flat) > len(best) {
			best = flat
		}
	}
	if len(best) < 4 {
		return nil
	}
	return geom.NewLineStringFlat(geom.XY, best).SetSRID(4326)
}

// polygonToGeom keeps the first ring of each part; parcel polygons are
// simple enough that holes never decide block membership.
func polygonToGeom(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	end := int32(len(p.Points))
	if p.NumParts > 1 {
		end = p.Parts[1]
	}
	flat := make([]float64, 0, end*2)
	for j := int32(0); j < end; j++ {
		flat = append(flat, p.Points[j].X, p.Points[j].Y)
	}
	if len(flat) < 8 {
		return nil
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}
