package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detroit-blocks/blockline/internal/model"
)

var now = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func TestCompute_Classification(t *testing.T) {
	snap := Compute("woodward_1200_1299", []model.Parcel{
		{ID: "r1", PropertyClass: "101"},
		{ID: "r2", PropertyClass: "102"},
		{ID: "c1", PropertyClass: "201"},
		{ID: "x1", PropertyClass: "301"},
	}, now)

	assert.Equal(t, 4, snap.ParcelCount)
	assert.Equal(t, 2, snap.ResidentialCount)
	assert.Equal(t, 1, snap.CommercialCount)
	assert.Equal(t, 1, snap.VacantCount, "102 is residential vacant land")
	assert.Equal(t, 3, snap.OccupiedCount)
}

func TestCompute_VacancySources(t *testing.T) {
	snap := Compute("b", []model.Parcel{
		{ID: "a", PropertyClass: "202"},
		{ID: "b", UseCode: "Vacant Lot"},
		{ID: "c", BuildingStatus: "DEMOLISHED"},
		{ID: "d", BuildingStatus: "occupied"},
	}, now)

	assert.Equal(t, 3, snap.VacantCount)
	assert.Equal(t, 1, snap.OccupiedCount)
	assert.Equal(t, 1, snap.BuildingStatus["demolished"])
	assert.Equal(t, 1, snap.BuildingStatus["occupied"])
}

func TestCompute_MedianOddAndEven(t *testing.T) {
	odd := Compute("b", []model.Parcel{
		{AssessedValue: 30}, {AssessedValue: 10}, {AssessedValue: 20},
	}, now)
	require.NotNil(t, odd.MedianAssessedValue)
	assert.InDelta(t, 20, *odd.MedianAssessedValue, 1e-9)
	require.NotNil(t, odd.AvgAssessedValue)
	assert.InDelta(t, 20, *odd.AvgAssessedValue, 1e-9)

	even := Compute("b", []model.Parcel{
		{AssessedValue: 40}, {AssessedValue: 10}, {AssessedValue: 30}, {AssessedValue: 20},
	}, now)
	require.NotNil(t, even.MedianAssessedValue)
	assert.InDelta(t, 25, *even.MedianAssessedValue, 1e-9)
}

func TestCompute_EmptyValuesLeaveStatisticsUnset(t *testing.T) {
	snap := Compute("b", []model.Parcel{{ID: "a"}, {ID: "b"}}, now)

	assert.Nil(t, snap.AvgAssessedValue)
	assert.Nil(t, snap.MedianAssessedValue)
	assert.Nil(t, snap.AvgTaxableValue)
	assert.Nil(t, snap.MedianTaxableValue)
}

func TestCompute_RecentSalesWindow(t *testing.T) {
	snap := Compute("b", []model.Parcel{
		{SaleDate: datePtr(now.AddDate(0, -6, 0))},
		{SaleDate: datePtr(now.AddDate(-1, -11, 0))},
		{SaleDate: datePtr(now.AddDate(-3, 0, 0))},
		{},
	}, now)

	assert.Equal(t, 2, snap.RecentSales)
}

func TestCompute_TaxDelinquency(t *testing.T) {
	snap := Compute("b", []model.Parcel{
		{TaxStatus: "DELINQUENT 2024"},
		{TaxStatus: "Forfeited"},
		{TaxStatus: "paid"},
	}, now)

	assert.Equal(t, 2, snap.TaxDelinquent)
}

func TestCompute_OwnershipPrecedence(t *testing.T) {
	snap := Compute("b", []model.Parcel{
		// Owner-occupied wins even when the taxpayer looks institutional.
		{OwnerOccupied: true, Taxpayer: "City of Detroit P&DD"},
		{Taxpayer: "CITY OF DETROIT"},
		{Taxpayer: "Detroit Land Bank Authority"},
		{Taxpayer: "Sunrise Holdings LLC"},
		{},
	}, now)

	assert.Equal(t, 1, snap.OwnerOccupied)
	assert.Equal(t, 1, snap.CityOwned)
	assert.Equal(t, 1, snap.LandBankOwned)
	assert.Equal(t, 2, snap.InvestorOwned)
}

func TestCompute_EmptyBlock(t *testing.T) {
	snap := Compute("b", nil, now)

	assert.Equal(t, 0, snap.ParcelCount)
	assert.Nil(t, snap.AvgAssessedValue)
	assert.Equal(t, "b", snap.BlockID)
	assert.True(t, snap.Date.Equal(now))
}
