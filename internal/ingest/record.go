// Package ingest turns CSV, XLSX, and shapefile sources into parcel records
// for the assignment engine. Rows stream in bounded chunks; column layouts
// are discovered from headers rather than fixed positions.
package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/detroit-blocks/blockline/internal/model"
)

// columnAliases maps each parcel field to the header spellings seen across
// the assessor and open-data exports.
var columnAliases = map[string][]string{
	"id":              {"parcel_id", "parcelno", "parcel_number", "parcelnum", "id"},
	"address":         {"address", "prop_addr", "property_address", "propaddr"},
	"latitude":        {"latitude", "lat"},
	"longitude":       {"longitude", "lng", "lon", "long"},
	"property_class":  {"property_class", "propclass", "property_class_code"},
	"use_code":        {"use_code", "usecode", "land_use"},
	"building_status": {"building_status", "bldg_status", "structure_condition"},
	"assessed_value":  {"assessed_value", "assessedvalue", "asv"},
	"taxable_value":   {"taxable_value", "taxablevalue", "txv"},
	"sale_date":       {"sale_date", "saledate", "last_sale_date"},
	"sale_price":      {"sale_price", "saleprice", "last_sale_price"},
	"tax_status":      {"tax_status", "taxstatus"},
	"taxpayer":        {"taxpayer", "taxpayer_1", "owner_name"},
	"owner_occupied":  {"owner_occupied", "homestead", "pre_percent"},
}

var saleDateFormats = []string{"2006-01-02", "01/02/2006", time.RFC3339}

// ColumnMap resolves parcel fields to column indexes for one source file.
type ColumnMap struct {
	idx map[string]int
}

// MapColumns matches a header row against the known column aliases. It fails
// when the source has neither a parcel id nor an address column, since such
// rows could never be assigned or persisted.
func MapColumns(header []string) (ColumnMap, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	m := ColumnMap{idx: make(map[string]int)}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := byName[alias]; ok {
				m.idx[field] = i
				break
			}
		}
	}

	if _, ok := m.idx["id"]; !ok {
		if _, ok := m.idx["address"]; !ok {
			return ColumnMap{}, eris.New("ingest: header has neither a parcel id nor an address column")
		}
	}
	return m, nil
}

// Parcel converts one data row using the mapped columns. Missing or
// malformed optional fields are left zero-valued; the row itself is never
// rejected here (unparsable addresses are the engine's concern).
func (m ColumnMap) Parcel(row []string) model.Parcel {
	get := func(field string) string {
		i, ok := m.idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	p := model.Parcel{
		ID:             get("id"),
		Address:        get("address"),
		PropertyClass:  get("property_class"),
		UseCode:        get("use_code"),
		BuildingStatus: get("building_status"),
		TaxStatus:      get("tax_status"),
		Taxpayer:       get("taxpayer"),
	}
	if p.ID == "" {
		p.ID = p.Address
	}

	p.Latitude, _ = strconv.ParseFloat(get("latitude"), 64)
	p.Longitude, _ = strconv.ParseFloat(get("longitude"), 64)
	p.AssessedValue, _ = strconv.ParseFloat(get("assessed_value"), 64)
	p.TaxableValue, _ = strconv.ParseFloat(get("taxable_value"), 64)
	p.SalePrice, _ = strconv.ParseFloat(get("sale_price"), 64)

	if raw := get("sale_date"); raw != "" {
		for _, layout := range saleDateFormats {
			if ts, err := time.Parse(layout, raw); err == nil {
				p.SaleDate = &ts
				break
			}
		}
	}

	switch strings.ToLower(get("owner_occupied")) {
	case "true", "t", "yes", "y", "1", "100", "100.0":
		p.OwnerOccupied = true
	}

	return p
}
