package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedID_Binning(t *testing.T) {
	tests := []struct {
		name   string
		street string
		number int
		size   int
		want   string
	}{
		{"mid bin", "woodward", 1250, 100, "woodward_1200_1299"},
		{"lower edge inclusive", "woodward", 1200, 100, "woodward_1200_1299"},
		{"upper edge inclusive", "woodward", 1299, 100, "woodward_1200_1299"},
		{"next bin", "woodward", 1301, 100, "woodward_1300_1399"},
		{"zero house number", "cass", 0, 100, "cass_0_99"},
		{"custom size", "cass", 430, 200, "cass_400_599"},
		{"default size on zero", "cass", 430, 0, "cass_400_499"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixedID(tt.street, tt.number, tt.size))
		})
	}
}

func TestFixedID_SameBinSameID(t *testing.T) {
	assert.Equal(t, FixedID("woodward", 1200, 100), FixedID("woodward", 1299, 100))
	assert.NotEqual(t, FixedID("woodward", 1299, 100), FixedID("woodward", 1301, 100))
}
