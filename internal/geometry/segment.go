package geometry

import (
	"go.uber.org/zap"
)

// DefaultEndpointThresholdMeters is the minimum distance between a street's
// physical endpoint and its nearest intersection for the stub beyond that
// intersection to count as its own block.
const DefaultEndpointThresholdMeters = 10.0

// coincidentSlopMeters absorbs spherical rounding when comparing endpoint
// distances against the threshold: an endpoint exactly at the threshold is
// coincident, not beyond it.
const coincidentSlopMeters = 1e-6

// SegmentOptions configures street segmentation.
type SegmentOptions struct {
	EndpointThresholdMeters float64
}

// Segment cuts a street centerline into blocks at the ordered intersection
// points: one block per consecutive intersection pair, plus a leading block
// from the line's start to the first intersection and a trailing block from
// the last intersection to the line's end — each only when that endpoint
// lies strictly farther than the threshold from its nearest intersection.
// With no intersections at all the whole line becomes a single block bounded
// by the start/end sentinels. A failed slice drops that one block and the
// rest of the street keeps processing.
func Segment(street Street, ordered []Intersection, opts SegmentOptions) []Block {
	log := zap.L().With(
		zap.String("component", "geometry.segment"),
		zap.String("street", street.Name),
	)

	if street.Line == nil || street.Line.NumCoords() < 2 {
		log.Warn("street line is degenerate, skipping segmentation")
		return nil
	}

	threshold := opts.EndpointThresholdMeters
	if threshold <= 0 {
		threshold = DefaultEndpointThresholdMeters
	}

	if len(ordered) == 0 {
		return []Block{{
			ID:        BlockID(street.Name, BoundaryStart, BoundaryEnd),
			Street:    street.Name,
			FromCross: BoundaryStart,
			ToCross:   BoundaryEnd,
			Line:      street.Line,
		}}
	}

	total := lineLength(street.Line)
	var blocks []Block

	emit := func(from, to float64, fromName, toName string) {
		line, err := sliceByDistance(street.Line, from, to)
		if err != nil {
			log.Warn("dropping degenerate segment",
				zap.String("from", fromName),
				zap.String("to", toName),
				zap.Error(err),
			)
			return
		}
		blocks = append(blocks, Block{
			ID:        BlockID(street.Name, fromName, toName),
			Street:    street.Name,
			FromCross: fromName,
			ToCross:   toName,
			Line:      line,
		})
	}

	first, last := ordered[0], ordered[len(ordered)-1]

	if DistanceMeters(street.Line.Coord(0), first.Point) > threshold+coincidentSlopMeters {
		emit(0, first.Distance, BoundaryStart, first.CrossStreetName)
	}
	for i := 0; i < len(ordered)-1; i++ {
		emit(ordered[i].Distance, ordered[i+1].Distance,
			ordered[i].CrossStreetName, ordered[i+1].CrossStreetName)
	}
	if DistanceMeters(street.Line.Coord(street.Line.NumCoords()-1), last.Point) > threshold+coincidentSlopMeters {
		emit(last.Distance, total, last.CrossStreetName, BoundaryEnd)
	}

	return blocks
}
