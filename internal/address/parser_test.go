package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RecognizedStreetType(t *testing.T) {
	p := Parse("1234 Woodward Ave")
	require.NotNil(t, p)

	assert.Equal(t, 1234, p.HouseNumber)
	assert.Equal(t, "woodward", p.StreetName)
	assert.Equal(t, "AVE", p.StreetType)
	assert.Empty(t, p.Directional)
}

func TestParse_DirectionalPrefixFoldedIntoName(t *testing.T) {
	p := Parse("500 E Jefferson Ave")
	require.NotNil(t, p)

	assert.Equal(t, 500, p.HouseNumber)
	assert.Equal(t, "E", p.Directional)
	assert.Equal(t, "e_jefferson", p.StreetName)
	assert.Equal(t, "AVE", p.StreetType)
}

func TestParse_NumberedStreetFallsBack(t *testing.T) {
	// "7 Mile" starts with a digit, so the primary pattern cannot claim it;
	// the fallback keeps the whole remainder, street type included.
	p := Parse("15000 7 Mile Rd")
	require.NotNil(t, p)

	assert.Equal(t, 15000, p.HouseNumber)
	assert.Equal(t, "7_mile_rd", p.StreetName)
	assert.Empty(t, p.StreetType)
}

func TestParse_MultiUnitKeepsFirstNumber(t *testing.T) {
	p := Parse("1234-1236 Woodward Ave")
	require.NotNil(t, p)

	assert.Equal(t, 1234, p.HouseNumber)
	assert.Equal(t, "woodward", p.StreetName)
}

func TestParse_FullStreetTypeWord(t *testing.T) {
	p := Parse("18900 Livernois Avenue")
	require.NotNil(t, p)

	assert.Equal(t, "livernois", p.StreetName)
	assert.Equal(t, "AVE", p.StreetType)
}

func TestParse_TrailingPeriodOnType(t *testing.T) {
	p := Parse("77 Bagley St.")
	require.NotNil(t, p)

	assert.Equal(t, "bagley", p.StreetName)
	assert.Equal(t, "ST", p.StreetType)
}

func TestParse_UnrecognizedTypeUsesFallback(t *testing.T) {
	p := Parse("100 Main Ave Ext")
	require.NotNil(t, p)

	assert.Equal(t, 100, p.HouseNumber)
	assert.Equal(t, "main_ave_ext", p.StreetName)
	assert.Empty(t, p.StreetType)
}

func TestParse_SingleWordStreetNoType(t *testing.T) {
	p := Parse("100 Broadway")
	require.NotNil(t, p)

	assert.Equal(t, "broadway", p.StreetName)
	assert.Empty(t, p.StreetType)
}

func TestParse_Unparsable(t *testing.T) {
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("   "))
	assert.Nil(t, Parse("Woodward Ave"), "no leading digit run")
	assert.Nil(t, Parse("PO BOX 441"), "digits not leading")
}
