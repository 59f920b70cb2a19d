package block

import (
	"github.com/detroit-blocks/blockline/internal/address"
	"github.com/detroit-blocks/blockline/internal/model"
)

// Options configures one assignment run.
type Options struct {
	// BlockSize is the house-number bin width. Defaults to DefaultBlockSize.
	BlockSize int `json:"block_size"`

	// UseNaturalBoundaries groups each street's parcels by numbering gaps
	// before binning, so the gap structure decides which parcels land
	// together; ids keep the fixed-size format either way.
	UseNaturalBoundaries bool `json:"use_natural_boundaries"`

	// GapThreshold is the natural-boundary gap cutoff. Defaults to
	// DefaultGapThreshold.
	GapThreshold int `json:"gap_threshold"`
}

// Summary holds the counters for one assignment run.
type Summary struct {
	Total         int `json:"total"`
	Assigned      int `json:"assigned"`
	ParseErrors   int `json:"parse_errors"`
	UniqueBlocks  int `json:"unique_blocks"`
	UniqueStreets int `json:"unique_streets"`
}

// Result is the output of one assignment run. All accumulator state is owned
// by the Result; concurrent runs never share it.
type Result struct {
	Assigned   []model.Assignment           `json:"assigned"`
	BlockStats map[string]*model.BlockStats `json:"block_stats"`
	Summary    Summary                      `json:"summary"`
}

// Assign groups parcels by normalized street name and derives a block id for
// every parcel with a parsable address. It is pure and deterministic:
// identical input yields identical output. In fixed mode the output preserves
// input order. In natural mode parcels are emitted street group by street
// group (groups in first-seen order) with each group re-sorted ascending by
// house number; unparsable parcels follow at the end in input order. The
// re-sort is part of the contract, not an artifact.
func Assign(parcels []model.Parcel, opts Options) *Result {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultGapThreshold
	}

	res := &Result{
		BlockStats: make(map[string]*model.BlockStats),
	}
	res.Summary.Total = len(parcels)

	// Parse pass: one assignment per input parcel, input order.
	entries := make([]model.Assignment, len(parcels))
	display := make(map[string]string) // street key -> display label of first parcel seen
	var streetOrder []string
	streets := make(map[string][]int) // street key -> entry indexes, input order
	for i, p := range parcels {
		entries[i] = model.Assignment{Parcel: p}
		parsed := address.Parse(p.Address)
		if parsed == nil {
			entries[i].ParseError = true
			res.Summary.ParseErrors++
			continue
		}
		entries[i].StreetName = parsed.StreetName
		entries[i].HouseNumber = parsed.HouseNumber
		if _, seen := streets[parsed.StreetName]; !seen {
			streetOrder = append(streetOrder, parsed.StreetName)
			display[parsed.StreetName] = parsed.RawStreetLabel
		}
		streets[parsed.StreetName] = append(streets[parsed.StreetName], i)
	}
	res.Summary.UniqueStreets = len(streets)

	if opts.UseNaturalBoundaries {
		res.Assigned = make([]model.Assignment, 0, len(entries))
		for _, street := range streetOrder {
			members := make([]Member, 0, len(streets[street]))
			for _, idx := range streets[street] {
				members = append(members, Member{
					Index:       idx,
					HouseNumber: entries[idx].HouseNumber,
					Address:     entries[idx].Parcel.Address,
				})
			}
			for _, boundary := range splitByGaps(members, opts.GapThreshold) {
				// The boundary only decides grouping; the id is still the
				// fixed-size bin of the boundary's lowest house number.
				id := FixedID(street, boundary.Start, opts.BlockSize)
				for _, m := range boundary.Members {
					e := entries[m.Index]
					e.BlockID = id
					res.accumulate(e, display[street])
					res.Assigned = append(res.Assigned, e)
				}
			}
		}
		for _, e := range entries {
			if e.ParseError {
				res.Assigned = append(res.Assigned, e)
			}
		}
		return res
	}

	for i := range entries {
		if !entries[i].ParseError {
			entries[i].BlockID = FixedID(entries[i].StreetName, entries[i].HouseNumber, opts.BlockSize)
			res.accumulate(entries[i], display[entries[i].StreetName])
		}
	}
	res.Assigned = entries
	return res
}

// Merge folds another run's output into r. The chunked orchestrator uses it
// in fixed mode, where per-chunk results are independent because the block id
// of a parcel never depends on other parcels.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Assigned = append(r.Assigned, other.Assigned...)
	for id, stats := range other.BlockStats {
		existing, ok := r.BlockStats[id]
		if !ok {
			merged := *stats
			r.BlockStats[id] = &merged
			continue
		}
		existing.ParcelCount += stats.ParcelCount
		if stats.MinHouseNumber < existing.MinHouseNumber {
			existing.MinHouseNumber = stats.MinHouseNumber
		}
		if stats.MaxHouseNumber > existing.MaxHouseNumber {
			existing.MaxHouseNumber = stats.MaxHouseNumber
		}
	}

	r.Summary.Total += other.Summary.Total
	r.Summary.Assigned += other.Summary.Assigned
	r.Summary.ParseErrors += other.Summary.ParseErrors
	r.Summary.UniqueBlocks = len(r.BlockStats)

	// Count normalized names, not display labels: the same street may carry
	// a different first-seen spelling in each chunk.
	streets := make(map[string]struct{}, len(r.BlockStats))
	for _, stats := range r.BlockStats {
		streets[stats.StreetKey] = struct{}{}
	}
	r.Summary.UniqueStreets = len(streets)
}

// accumulate folds one assigned parcel into the run's block stats.
func (r *Result) accumulate(e model.Assignment, street string) {
	r.Summary.Assigned++
	stats, ok := r.BlockStats[e.BlockID]
	if !ok {
		stats = &model.BlockStats{
			BlockID:        e.BlockID,
			Street:         street,
			StreetKey:      e.StreetName,
			MinHouseNumber: e.HouseNumber,
			MaxHouseNumber: e.HouseNumber,
		}
		r.BlockStats[e.BlockID] = stats
		r.Summary.UniqueBlocks++
	}
	stats.ParcelCount++
	if e.HouseNumber < stats.MinHouseNumber {
		stats.MinHouseNumber = e.HouseNumber
	}
	if e.HouseNumber > stats.MaxHouseNumber {
		stats.MaxHouseNumber = e.HouseNumber
	}
}
