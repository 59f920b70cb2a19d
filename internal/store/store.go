// Package store persists block summaries, parcel memberships, analytics
// snapshots, and run records behind one interface with Postgres and SQLite
// implementations. Uniqueness of the compound keys (block_id, parcel_id) and
// (block_id, date) is enforced here, not by the engine.
package store

import (
	"context"
	"time"

	"github.com/detroit-blocks/blockline/internal/model"
)

// ParcelRow is one parcel-to-block membership for upsert.
type ParcelRow struct {
	BlockID string
	Parcel  model.Parcel
}

// BlockFilter specifies criteria for listing persisted block summaries.
type BlockFilter struct {
	Street string `json:"street,omitempty"`
	SortBy string `json:"sort_by,omitempty"` // "parcel_count" or "street" (default)
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store is the persistence interface for block data.
type Store interface {
	// Blocks
	UpsertBlocks(ctx context.Context, blocks []model.BlockSummary) (int64, error)
	GetBlock(ctx context.Context, blockID string) (*model.BlockSummary, error)
	ListBlocks(ctx context.Context, filter BlockFilter) ([]model.BlockSummary, int, error)

	// Parcel memberships, keyed (block_id, parcel_id)
	UpsertParcels(ctx context.Context, rows []ParcelRow) (int64, error)
	ListParcels(ctx context.Context, blockID string) ([]model.Parcel, error)

	// Analytics snapshots, keyed (block_id, date)
	UpsertSnapshots(ctx context.Context, snaps []model.Snapshot) (int64, error)
	GetSnapshot(ctx context.Context, blockID string, date time.Time) (*model.Snapshot, error)

	// Runs
	CreateRun(ctx context.Context, mode string) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
