package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

func TestBufferCorridor_ContainsNearbyPoints(t *testing.T) {
	line := equatorLine(0, 200)
	poly, err := BufferCorridor(line, 50)
	require.NoError(t, err)
	require.NotNil(t, poly)

	ring := poly.LinearRing(0).FlatCoords()

	inside := geom.Coord{100 * degPerMeter, 20 * degPerMeter}  // 20 m north of mid-line
	outside := geom.Coord{100 * degPerMeter, 80 * degPerMeter} // 80 m north
	pastEnd := geom.Coord{260 * degPerMeter, 0}                // beyond the flat end cap
	south := geom.Coord{100 * degPerMeter, -30 * degPerMeter}  // 30 m south
	farSouth := geom.Coord{100 * degPerMeter, -70 * degPerMeter}

	assert.True(t, xy.IsPointInRing(geom.XY, inside, ring))
	assert.True(t, xy.IsPointInRing(geom.XY, south, ring))
	assert.False(t, xy.IsPointInRing(geom.XY, outside, ring))
	assert.False(t, xy.IsPointInRing(geom.XY, pastEnd, ring))
	assert.False(t, xy.IsPointInRing(geom.XY, farSouth, ring))
}

func TestBufferCorridor_BentLine(t *testing.T) {
	// An L-shaped street; the corridor must still close into a single ring
	// containing points near both legs.
	flat := []float64{0, 0, 100 * degPerMeter, 0, 100 * degPerMeter, 100 * degPerMeter}
	line := geom.NewLineStringFlat(geom.XY, flat)

	poly, err := BufferCorridor(line, 50)
	require.NoError(t, err)

	ring := poly.LinearRing(0).FlatCoords()
	assert.True(t, xy.IsPointInRing(geom.XY, geom.Coord{50 * degPerMeter, 10 * degPerMeter}, ring))
	assert.True(t, xy.IsPointInRing(geom.XY, geom.Coord{110 * degPerMeter, 50 * degPerMeter}, ring))
}

func TestBufferCorridor_Degenerate(t *testing.T) {
	_, err := BufferCorridor(nil, 50)
	assert.Error(t, err)

	_, err = BufferCorridor(geom.NewLineStringFlat(geom.XY, []float64{1, 1, 1, 1}), 50)
	assert.Error(t, err)
}

func TestBuffer_DropsUnbufferable(t *testing.T) {
	good := Block{ID: "good", Line: equatorLine(0, 100)}
	bad := Block{ID: "bad", Line: nil}

	out := Buffer([]Block{bad, good}, 50)

	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].ID)
	require.NotNil(t, out[0].Corridor)

	// Centroid of a straight corridor sits on the line's midpoint.
	assert.InDelta(t, 50*degPerMeter, out[0].Centroid[0], 1e-9)
	assert.InDelta(t, 0, out[0].Centroid[1], 1e-9)
}
