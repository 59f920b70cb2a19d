// Package model holds the plain record types exchanged between the ingestion,
// assignment, analytics, and persistence layers.
package model

import "time"

// Parcel is a single taxable property record. Address is required for
// address-based assignment; coordinates and assessment fields are optional
// and zero-valued when the source does not carry them.
type Parcel struct {
	ID      string `json:"id"`
	Address string `json:"address"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	PropertyClass  string `json:"property_class,omitempty"`
	UseCode        string `json:"use_code,omitempty"`
	BuildingStatus string `json:"building_status,omitempty"`

	AssessedValue float64 `json:"assessed_value,omitempty"`
	TaxableValue  float64 `json:"taxable_value,omitempty"`

	SaleDate  *time.Time `json:"sale_date,omitempty"`
	SalePrice float64    `json:"sale_price,omitempty"`

	TaxStatus     string `json:"tax_status,omitempty"`
	Taxpayer      string `json:"taxpayer,omitempty"`
	OwnerOccupied bool   `json:"owner_occupied,omitempty"`
}

// Assignment is the per-parcel outcome of a block assignment run. A parcel
// whose address could not be parsed carries ParseError=true and an empty
// BlockID; it never contributes to block statistics.
type Assignment struct {
	Parcel      Parcel `json:"parcel"`
	BlockID     string `json:"block_id,omitempty"`
	StreetName  string `json:"street_name,omitempty"`
	HouseNumber int    `json:"house_number,omitempty"`
	ParseError  bool   `json:"parse_error,omitempty"`
}

// BlockStats accumulates per-block counters during one assignment run. It is
// created on the first parcel assigned to a block and only ever grows.
type BlockStats struct {
	BlockID string `json:"block_id"`
	// Street is the display label of the first parcel seen on the street.
	// StreetKey is the normalized name; distinct-street counting uses it so
	// spelling variants of one street never count twice.
	Street         string `json:"street"`
	StreetKey      string `json:"street_key"`
	ParcelCount    int    `json:"parcel_count"`
	MinHouseNumber int    `json:"min_house_number"`
	MaxHouseNumber int    `json:"max_house_number"`
}
