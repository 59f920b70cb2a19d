package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/detroit-blocks/blockline/internal/db"
	"github.com/detroit-blocks/blockline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS blocks;

CREATE TABLE IF NOT EXISTS blocks.blocks (
	block_id         TEXT PRIMARY KEY,
	street           TEXT NOT NULL,
	from_cross       TEXT NOT NULL DEFAULT '',
	to_cross         TEXT NOT NULL DEFAULT '',
	parcel_count     INTEGER NOT NULL DEFAULT 0,
	min_house_number INTEGER NOT NULL DEFAULT 0,
	max_house_number INTEGER NOT NULL DEFAULT 0,
	geom             BYTEA,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blocks.parcels (
	block_id   TEXT NOT NULL,
	parcel_id  TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	attrs      JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (block_id, parcel_id)
);

CREATE TABLE IF NOT EXISTS blocks.snapshots (
	block_id      TEXT NOT NULL,
	snapshot_date DATE NOT NULL,
	stats         JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (block_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS blocks.runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	assigned    INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	blocks      INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_blocks_street ON blocks.blocks(street);
CREATE INDEX IF NOT EXISTS idx_parcels_parcel_id ON blocks.parcels(parcel_id);
`

// Migrate creates the blocks schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertBlocks bulk-upserts block summaries keyed by block_id.
func (s *PostgresStore) UpsertBlocks(ctx context.Context, blocks []model.BlockSummary) (int64, error) {
	rows := make([][]any, 0, len(blocks))
	now := time.Now().UTC()
	for _, b := range blocks {
		rows = append(rows, []any{
			b.BlockID, b.Street, b.FromCross, b.ToCross,
			b.ParcelCount, b.MinHouseNumber, b.MaxHouseNumber, b.Geometry, now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "blocks.blocks",
		Columns:      []string{"block_id", "street", "from_cross", "to_cross", "parcel_count", "min_house_number", "max_house_number", "geom", "updated_at"},
		ConflictKeys: []string{"block_id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert blocks")
}

// UpsertParcels bulk-upserts parcel memberships keyed (block_id, parcel_id).
func (s *PostgresStore) UpsertParcels(ctx context.Context, parcelRows []ParcelRow) (int64, error) {
	rows := make([][]any, 0, len(parcelRows))
	now := time.Now().UTC()
	for _, r := range parcelRows {
		attrs, err := json.Marshal(r.Parcel)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal parcel %s", r.Parcel.ID)
		}
		rows = append(rows, []any{r.BlockID, r.Parcel.ID, r.Parcel.Address, attrs, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "blocks.parcels",
		Columns:      []string{"block_id", "parcel_id", "address", "attrs", "updated_at"},
		ConflictKeys: []string{"block_id", "parcel_id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert parcels")
}

// UpsertSnapshots bulk-upserts analytics snapshots keyed (block_id, date).
func (s *PostgresStore) UpsertSnapshots(ctx context.Context, snaps []model.Snapshot) (int64, error) {
	rows := make([][]any, 0, len(snaps))
	now := time.Now().UTC()
	for _, snap := range snaps {
		stats, err := json.Marshal(snap)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal snapshot %s", snap.BlockID)
		}
		rows = append(rows, []any{snap.BlockID, snap.Date.Format("2006-01-02"), stats, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "blocks.snapshots",
		Columns:      []string{"block_id", "snapshot_date", "stats", "updated_at"},
		ConflictKeys: []string{"block_id", "snapshot_date"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert snapshots")
}

// GetBlock retrieves one block summary by id.
func (s *PostgresStore) GetBlock(ctx context.Context, blockID string) (*model.BlockSummary, error) {
	var b model.BlockSummary
	err := s.pool.QueryRow(ctx,
		`SELECT block_id, street, from_cross, to_cross, parcel_count, min_house_number, max_house_number, geom, updated_at
		 FROM blocks.blocks WHERE block_id = $1`,
		blockID,
	).Scan(&b.BlockID, &b.Street, &b.FromCross, &b.ToCross, &b.ParcelCount, &b.MinHouseNumber, &b.MaxHouseNumber, &b.Geometry, &b.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get block %s", blockID)
	}
	return &b, nil
}

// ListBlocks returns block summaries matching the filter plus the unpaged
// total count.
func (s *PostgresStore) ListBlocks(ctx context.Context, filter BlockFilter) ([]model.BlockSummary, int, error) {
	where := ""
	args := []any{}
	if filter.Street != "" {
		where = "WHERE street ILIKE '%' || $1 || '%'"
		args = append(args, filter.Street)
	}

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM blocks.blocks %s", where)
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count blocks")
	}

	order := "street, block_id"
	if filter.SortBy == "parcel_count" {
		order = "parcel_count DESC, block_id"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	sql := fmt.Sprintf(
		`SELECT block_id, street, from_cross, to_cross, parcel_count, min_house_number, max_house_number, geom, updated_at
		 FROM blocks.blocks %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		where, order, len(args)-1, len(args),
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list blocks")
	}
	defer rows.Close()

	var blocks []model.BlockSummary
	for rows.Next() {
		var b model.BlockSummary
		if err := rows.Scan(&b.BlockID, &b.Street, &b.FromCross, &b.ToCross, &b.ParcelCount, &b.MinHouseNumber, &b.MaxHouseNumber, &b.Geometry, &b.UpdatedAt); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan block row")
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: iterate block rows")
	}
	return blocks, total, nil
}

// ListParcels returns the parcels assigned to a block.
func (s *PostgresStore) ListParcels(ctx context.Context, blockID string) ([]model.Parcel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT attrs FROM blocks.parcels WHERE block_id = $1 ORDER BY parcel_id`,
		blockID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list parcels %s", blockID)
	}
	defer rows.Close()

	var parcels []model.Parcel
	for rows.Next() {
		var attrs []byte
		if err := rows.Scan(&attrs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan parcel row")
		}
		var p model.Parcel
		if err := json.Unmarshal(attrs, &p); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal parcel in %s", blockID)
		}
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate parcel rows")
	}
	return parcels, nil
}

// GetSnapshot retrieves the analytics snapshot for a block on a date.
func (s *PostgresStore) GetSnapshot(ctx context.Context, blockID string, date time.Time) (*model.Snapshot, error) {
	var stats []byte
	err := s.pool.QueryRow(ctx,
		`SELECT stats FROM blocks.snapshots WHERE block_id = $1 AND snapshot_date = $2`,
		blockID, date.Format("2006-01-02"),
	).Scan(&stats)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", blockID)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(stats, &snap); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal snapshot %s", blockID)
	}
	return &snap, nil
}

// CreateRun inserts a new run record in the given mode.
func (s *PostgresStore) CreateRun(ctx context.Context, mode string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocks.runs (id, mode, started_at) VALUES ($1, $2, $3)`,
		run.ID, run.Mode, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

// FinishRun records a run's final counters and finish time.
func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	_, err := s.pool.Exec(ctx,
		`UPDATE blocks.runs SET total = $1, assigned = $2, errors = $3, blocks = $4, finished_at = $5 WHERE id = $6`,
		run.Total, run.Assigned, run.Errors, run.Blocks, now, run.ID,
	)
	return eris.Wrapf(err, "postgres: finish run %s", run.ID)
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, total, assigned, errors, blocks, started_at, finished_at
		 FROM blocks.runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Mode, &r.Total, &r.Assigned, &r.Errors, &r.Blocks, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run row")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate run rows")
	}
	return runs, nil
}
