package block

import (
	"fmt"
	"sort"
)

// Issue is a single diagnostic raised by Validate. Severity is "warning" or
// "info"; nothing the validator raises today is fatal.
type Issue struct {
	Type     string `json:"type"`
	BlockID  string `json:"block_id"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Validation is the outcome of validating an assignment result. Valid is
// false only when an issue carries severity "error".
type Validation struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// sparseOccupancy assumes roughly every other integer in a block's observed
// house-number span is an addressable parcel on one side of the street; a
// block holding under 30% of that expectation is flagged sparse. Heuristic
// thresholds, kept as constants rather than re-derived.
const (
	sparseOccupancy = 0.3
	smallBlockMin   = 3
)

// Validate inspects an assignment result for suspicious blocks. It never
// blocks persistence; all current issues are advisory.
func Validate(res *Result) Validation {
	v := Validation{Valid: true}
	if res == nil {
		return v
	}

	ids := make([]string, 0, len(res.BlockStats))
	for id := range res.BlockStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stats := res.BlockStats[id]

		expected := (stats.MaxHouseNumber-stats.MinHouseNumber)/2 + 1
		if expected > 0 && float64(stats.ParcelCount) < sparseOccupancy*float64(expected) {
			v.Issues = append(v.Issues, Issue{
				Type:     "sparse_block",
				BlockID:  id,
				Message:  fmt.Sprintf("block has %d parcels across a span expecting ~%d", stats.ParcelCount, expected),
				Severity: "warning",
			})
		}
		if stats.ParcelCount < smallBlockMin {
			v.Issues = append(v.Issues, Issue{
				Type:     "small_block",
				BlockID:  id,
				Message:  fmt.Sprintf("block has only %d parcels", stats.ParcelCount),
				Severity: "info",
			})
		}
	}

	for _, issue := range v.Issues {
		if issue.Severity == "error" {
			v.Valid = false
			break
		}
	}
	return v
}
