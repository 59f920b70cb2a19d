package block

import (
	"sort"

	"github.com/detroit-blocks/blockline/internal/address"
)

// Member is one parsed address inside a natural-boundary group. Index points
// back at the caller's input slice.
type Member struct {
	Index       int    `json:"index"`
	HouseNumber int    `json:"house_number"`
	Address     string `json:"address"`
}

// Boundary is a run of consecutive house numbers with no gap larger than the
// detection threshold. Start and End are the observed min and max numbers.
type Boundary struct {
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Members []Member `json:"members"`
}

// DetectBoundaries parses every address, drops the unparsable ones, and
// splits the remainder into groups wherever the gap between consecutive house
// numbers (sorted ascending) exceeds gapThreshold. Equal house numbers always
// share a group. A non-positive threshold falls back to the default.
func DetectBoundaries(addresses []string, gapThreshold int) []Boundary {
	members := make([]Member, 0, len(addresses))
	for i, raw := range addresses {
		parsed := address.Parse(raw)
		if parsed == nil {
			continue
		}
		members = append(members, Member{Index: i, HouseNumber: parsed.HouseNumber, Address: raw})
	}
	return splitByGaps(members, gapThreshold)
}

// splitByGaps sorts members by house number (stable, so input order breaks
// ties) and walks the sequence, cutting a new boundary whenever the gap to
// the previous number is strictly greater than gapThreshold.
func splitByGaps(members []Member, gapThreshold int) []Boundary {
	if len(members) == 0 {
		return nil
	}
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].HouseNumber < sorted[j].HouseNumber
	})

	var boundaries []Boundary
	current := Boundary{
		Start:   sorted[0].HouseNumber,
		End:     sorted[0].HouseNumber,
		Members: []Member{sorted[0]},
	}
	for _, m := range sorted[1:] {
		if m.HouseNumber-current.End > gapThreshold {
			boundaries = append(boundaries, current)
			current = Boundary{Start: m.HouseNumber, End: m.HouseNumber, Members: []Member{m}}
			continue
		}
		current.End = m.HouseNumber
		current.Members = append(current.Members, m)
	}
	return append(boundaries, current)
}
