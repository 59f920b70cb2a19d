// Package block assigns parcels to blocks. Two strategies share one id
// contract: fixed-size numeric binning of house numbers, and natural-gap
// grouping that detects breaks in the observed numbering before binning.
package block

import "fmt"

// DefaultBlockSize is the house-number bin width used when a run does not
// configure one.
const DefaultBlockSize = 100

// DefaultGapThreshold is the house-number gap above which natural-boundary
// detection starts a new group.
const DefaultGapThreshold = 50

// FixedID returns the deterministic block id for a house number on a street:
// "<street>_<start>_<end>" where start = floor(n/blockSize)*blockSize and
// end = start+blockSize-1. The street name must already be normalized.
// This string is the only correlation key between independently processed
// batches, so its shape must never change.
func FixedID(street string, houseNumber, blockSize int) string {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	start := houseNumber / blockSize * blockSize
	return fmt.Sprintf("%s_%d_%d", street, start, start+blockSize-1)
}
