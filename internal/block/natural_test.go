package block

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrs(numbers ...int) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = fmt.Sprintf("%d Woodward Ave", n)
	}
	return out
}

func TestDetectBoundaries_SingleRun(t *testing.T) {
	// Largest gap here is 46 (1255 -> 1301), which does not exceed the
	// threshold of 50, so the whole sequence stays one group.
	bs := DetectBoundaries(addrs(1201, 1205, 1209, 1215, 1225, 1235, 1245, 1255, 1301, 1305, 1315), 50)

	require.Len(t, bs, 1)
	assert.Equal(t, 1201, bs[0].Start)
	assert.Equal(t, 1315, bs[0].End)
	assert.Len(t, bs[0].Members, 11)
}

func TestDetectBoundaries_SplitsOnGap(t *testing.T) {
	bs := DetectBoundaries(addrs(100, 110, 120, 400, 410), 50)

	require.Len(t, bs, 2)
	assert.Equal(t, 100, bs[0].Start)
	assert.Equal(t, 120, bs[0].End)
	assert.Len(t, bs[0].Members, 3)
	assert.Equal(t, 400, bs[1].Start)
	assert.Equal(t, 410, bs[1].End)
	assert.Len(t, bs[1].Members, 2)
}

func TestDetectBoundaries_GapExactlyAtThresholdStaysTogether(t *testing.T) {
	bs := DetectBoundaries(addrs(100, 150), 50)
	require.Len(t, bs, 1)

	bs = DetectBoundaries(addrs(100, 151), 50)
	require.Len(t, bs, 2)
}

func TestDetectBoundaries_EqualNumbersShareGroup(t *testing.T) {
	bs := DetectBoundaries(addrs(100, 100, 100), 50)

	require.Len(t, bs, 1)
	assert.Equal(t, 100, bs[0].Start)
	assert.Equal(t, 100, bs[0].End)
	assert.Len(t, bs[0].Members, 3)
}

func TestDetectBoundaries_UnsortedInput(t *testing.T) {
	bs := DetectBoundaries(addrs(400, 100, 410, 110), 50)

	require.Len(t, bs, 2)
	assert.Equal(t, 100, bs[0].Start)
	assert.Equal(t, 400, bs[1].Start)
}

func TestDetectBoundaries_DropsUnparsable(t *testing.T) {
	in := []string{"100 Woodward Ave", "Woodward Ave", "", "120 Woodward Ave"}
	bs := DetectBoundaries(in, 50)

	require.Len(t, bs, 1)
	assert.Len(t, bs[0].Members, 2)
	assert.Equal(t, 0, bs[0].Members[0].Index)
	assert.Equal(t, 3, bs[0].Members[1].Index)
}

func TestDetectBoundaries_Empty(t *testing.T) {
	assert.Nil(t, DetectBoundaries(nil, 50))
	assert.Nil(t, DetectBoundaries([]string{"no number here"}, 50))
}
