// Package analytics computes point-in-time statistical snapshots for the
// parcels assigned to a block. Everything here is a pure function of its
// inputs; snapshots are recomputed wholesale each run, never patched.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/detroit-blocks/blockline/internal/model"
)

// Compute aggregates one block's parcels into a snapshot dated now, using the
// default classification rules. Empty value sets leave the corresponding
// statistic nil rather than zero.
func Compute(blockID string, parcels []model.Parcel, now time.Time) model.Snapshot {
	return ComputeWithRules(blockID, parcels, now, DefaultRules())
}

// ComputeWithRules is Compute with caller-supplied classification rules.
func ComputeWithRules(blockID string, parcels []model.Parcel, now time.Time, rules Rules) model.Snapshot {
	snap := model.Snapshot{
		BlockID:     blockID,
		Date:        now,
		ParcelCount: len(parcels),
	}
	saleWindow := time.Duration(rules.RecentSaleYears) * 365 * 24 * time.Hour

	var assessed, taxable []float64
	for _, p := range parcels {
		classifyUse(&snap, p)
		classifyVacancy(&snap, p, rules)
		classifyOwnership(&snap, p, rules)

		if p.BuildingStatus != "" {
			if snap.BuildingStatus == nil {
				snap.BuildingStatus = make(map[string]int)
			}
			snap.BuildingStatus[strings.ToLower(p.BuildingStatus)]++
		}
		if p.AssessedValue > 0 {
			assessed = append(assessed, p.AssessedValue)
		}
		if p.TaxableValue > 0 {
			taxable = append(taxable, p.TaxableValue)
		}
		if p.SaleDate != nil && now.Sub(*p.SaleDate) <= saleWindow {
			snap.RecentSales++
		}
		if containsAny(p.TaxStatus, rules.DelinquentKeywords) {
			snap.TaxDelinquent++
		}
	}

	snap.AvgAssessedValue = mean(assessed)
	snap.MedianAssessedValue = median(assessed)
	snap.AvgTaxableValue = mean(taxable)
	snap.MedianTaxableValue = median(taxable)
	return snap
}

// classifyUse counts parcels by the leading digit of their property class:
// 1xx is residential, 2xx commercial.
func classifyUse(snap *model.Snapshot, p model.Parcel) {
	switch {
	case strings.HasPrefix(p.PropertyClass, "1"):
		snap.ResidentialCount++
	case strings.HasPrefix(p.PropertyClass, "2"):
		snap.CommercialCount++
	}
}

// classifyVacancy flags a parcel vacant when any of the property class, use
// code, or building status says so.
func classifyVacancy(snap *model.Snapshot, p model.Parcel, rules Rules) {
	vacant := inSet(p.PropertyClass, rules.VacantClasses)
	if !vacant {
		vacant = strings.Contains(strings.ToLower(p.UseCode), "vacant")
	}
	if !vacant {
		vacant = inSet(p.BuildingStatus, rules.VacantStatuses)
	}
	if vacant {
		snap.VacantCount++
	} else {
		snap.OccupiedCount++
	}
}

// classifyOwnership buckets a parcel by its taxpayer of record, in precedence
// order: the owner-occupied flag wins, then city ownership, then the land
// bank, and everything else defaults to investor-owned.
func classifyOwnership(snap *model.Snapshot, p model.Parcel, rules Rules) {
	switch {
	case p.OwnerOccupied:
		snap.OwnerOccupied++
	case containsAny(p.Taxpayer, rules.CityKeywords):
		snap.CityOwned++
	case containsAny(p.Taxpayer, rules.LandBankKeywords):
		snap.LandBankOwned++
	default:
		snap.InvestorOwned++
	}
}

// mean returns nil for an empty set instead of producing zero or NaN.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// median uses the standard sorted-midpoint rule, averaging the two middle
// values for even-length sets. Nil for empty sets.
func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var m float64
	if len(sorted)%2 == 1 {
		m = sorted[mid]
	} else {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}
