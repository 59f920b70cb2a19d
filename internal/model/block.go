package model

import "time"

// BlockSummary is the persisted, queryable form of a block: the BlockID key
// plus derived display fields. FromCross/ToCross are empty for blocks
// produced by address-based assignment.
type BlockSummary struct {
	BlockID        string    `json:"block_id"`
	Street         string    `json:"street"`
	FromCross      string    `json:"from_cross,omitempty"`
	ToCross        string    `json:"to_cross,omitempty"`
	ParcelCount    int       `json:"parcel_count"`
	MinHouseNumber int       `json:"min_house_number,omitempty"`
	MaxHouseNumber int       `json:"max_house_number,omitempty"`
	Geometry       []byte    `json:"-"` // EWKB corridor polygon, when geometric
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time analytics aggregate for one block. It is a
// pure function of the parcels assigned to the block and is recomputed
// wholesale each run. Pointer-valued statistics are nil when the underlying
// value set was empty, never zero or NaN.
type Snapshot struct {
	BlockID string    `json:"block_id"`
	Date    time.Time `json:"date"`

	ParcelCount      int `json:"parcel_count"`
	ResidentialCount int `json:"residential_count"`
	CommercialCount  int `json:"commercial_count"`
	VacantCount      int `json:"vacant_count"`
	OccupiedCount    int `json:"occupied_count"`

	BuildingStatus map[string]int `json:"building_status,omitempty"`

	AvgAssessedValue    *float64 `json:"avg_assessed_value,omitempty"`
	MedianAssessedValue *float64 `json:"median_assessed_value,omitempty"`
	AvgTaxableValue     *float64 `json:"avg_taxable_value,omitempty"`
	MedianTaxableValue  *float64 `json:"median_taxable_value,omitempty"`

	RecentSales   int `json:"recent_sales"`
	TaxDelinquent int `json:"tax_delinquent"`

	OwnerOccupied int `json:"owner_occupied"`
	CityOwned     int `json:"city_owned"`
	LandBankOwned int `json:"land_bank_owned"`
	InvestorOwned int `json:"investor_owned"`
}

// Run records one assignment or segmentation run for auditing.
type Run struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"` // "fixed", "natural", or "geometric"
	Total      int        `json:"total"`
	Assigned   int        `json:"assigned"`
	Errors     int        `json:"errors"`
	Blocks     int        `json:"blocks"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
