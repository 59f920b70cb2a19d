package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/detroit-blocks/blockline/internal/model"
)

func twoCorridors(t *testing.T) []Block {
	t.Helper()
	blocks := Buffer([]Block{
		{ID: "blk_a", Line: equatorLine(0, 100)},
		{ID: "blk_b", Line: equatorLine(200, 300)},
	}, 30)
	require.Len(t, blocks, 2)
	return blocks
}

func TestAssignParcels_ExclusiveMembership(t *testing.T) {
	blocks := twoCorridors(t)

	features := []ParcelFeature{
		{Parcel: model.Parcel{ID: "in-a"}, Geometry: geom.NewPointFlat(geom.XY, []float64{50 * degPerMeter, 10 * degPerMeter})},
		{Parcel: model.Parcel{ID: "in-b"}, Geometry: geom.NewPointFlat(geom.XY, []float64{250 * degPerMeter, -10 * degPerMeter})},
		{Parcel: model.Parcel{ID: "nowhere"}, Geometry: geom.NewPointFlat(geom.XY, []float64{150 * degPerMeter, 90 * degPerMeter})},
	}

	memberships, unmatched := AssignParcels(features, blocks)

	require.Len(t, memberships["blk_a"], 1)
	assert.Equal(t, "in-a", memberships["blk_a"][0].ID)
	require.Len(t, memberships["blk_b"], 1)
	assert.Equal(t, "in-b", memberships["blk_b"][0].ID)
	assert.Equal(t, 1, unmatched)

	total := 0
	for _, members := range memberships {
		total += len(members)
	}
	assert.Equal(t, 2, total, "a parcel joins at most one block")
}

func TestAssignParcels_FirstMatchWins(t *testing.T) {
	// Two corridors buffered wide enough to overlap; the parcel sits in the
	// overlap and must land in the first block by input order.
	blocks := Buffer([]Block{
		{ID: "first", Line: equatorLine(0, 100)},
		{ID: "second", Line: equatorLine(80, 180)},
	}, 50)
	require.Len(t, blocks, 2)

	features := []ParcelFeature{
		{Parcel: model.Parcel{ID: "overlap"}, Geometry: geom.NewPointFlat(geom.XY, []float64{90 * degPerMeter, 0})},
	}

	memberships, unmatched := AssignParcels(features, blocks)

	assert.Len(t, memberships["first"], 1)
	assert.Empty(t, memberships["second"])
	assert.Zero(t, unmatched)
}

func TestAssignParcels_PolygonCentroid(t *testing.T) {
	blocks := twoCorridors(t)

	// A square parcel straddling nothing: centroid at (50 m, 10 m) inside blk_a.
	x0, y0 := 45*degPerMeter, 5*degPerMeter
	x1, y1 := 55*degPerMeter, 15*degPerMeter
	square := geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10})

	memberships, unmatched := AssignParcels([]ParcelFeature{
		{Parcel: model.Parcel{ID: "poly"}, Geometry: square},
	}, blocks)

	assert.Len(t, memberships["blk_a"], 1)
	assert.Zero(t, unmatched)
}

func TestAssignParcels_FallsBackToRecordedCoordinates(t *testing.T) {
	blocks := twoCorridors(t)

	memberships, unmatched := AssignParcels([]ParcelFeature{
		{Parcel: model.Parcel{ID: "latlng", Longitude: 250 * degPerMeter, Latitude: 5 * degPerMeter}},
		{Parcel: model.Parcel{ID: "no-geom"}},
	}, blocks)

	assert.Len(t, memberships["blk_b"], 1)
	assert.Equal(t, 1, unmatched)
}

func TestRepresentativePoint_MultiPolygon(t *testing.T) {
	x0, y0, x1, y1 := 0.0, 0.0, 2.0, 2.0
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10})
	require.NoError(t, mp.Push(poly))

	pt, ok := RepresentativePoint(ParcelFeature{Geometry: mp})
	require.True(t, ok)
	assert.InDelta(t, 1.0, pt[0], 1e-12)
	assert.InDelta(t, 1.0, pt[1], 1e-12)
}
