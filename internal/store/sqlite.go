package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/detroit-blocks/blockline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-machine runs; Postgres is preferred when serving
// concurrent queries.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS blocks (
	block_id         TEXT PRIMARY KEY,
	street           TEXT NOT NULL,
	from_cross       TEXT NOT NULL DEFAULT '',
	to_cross         TEXT NOT NULL DEFAULT '',
	parcel_count     INTEGER NOT NULL DEFAULT 0,
	min_house_number INTEGER NOT NULL DEFAULT 0,
	max_house_number INTEGER NOT NULL DEFAULT 0,
	geom             BLOB,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parcels (
	block_id   TEXT NOT NULL,
	parcel_id  TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	attrs      TEXT,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (block_id, parcel_id)
);

CREATE TABLE IF NOT EXISTS snapshots (
	block_id      TEXT NOT NULL,
	snapshot_date TEXT NOT NULL,
	stats         TEXT NOT NULL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (block_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	assigned    INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	blocks      INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_blocks_street ON blocks(street);
CREATE INDEX IF NOT EXISTS idx_parcels_parcel_id ON parcels(parcel_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBlocks(ctx context.Context, blocks []model.BlockSummary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert blocks")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blocks (block_id, street, from_cross, to_cross, parcel_count, min_house_number, max_house_number, geom, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (block_id) DO UPDATE SET
		   street = excluded.street,
		   from_cross = excluded.from_cross,
		   to_cross = excluded.to_cross,
		   parcel_count = excluded.parcel_count,
		   min_house_number = excluded.min_house_number,
		   max_house_number = excluded.max_house_number,
		   geom = excluded.geom,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert blocks")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, b := range blocks {
		if _, err := stmt.ExecContext(ctx,
			b.BlockID, b.Street, b.FromCross, b.ToCross,
			b.ParcelCount, b.MinHouseNumber, b.MaxHouseNumber, b.Geometry, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert block %s", b.BlockID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit upsert blocks")
}

func (s *SQLiteStore) UpsertParcels(ctx context.Context, parcelRows []ParcelRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert parcels")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parcels (block_id, parcel_id, address, attrs, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (block_id, parcel_id) DO UPDATE SET
		   address = excluded.address,
		   attrs = excluded.attrs,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert parcels")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, r := range parcelRows {
		attrs, err := json.Marshal(r.Parcel)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal parcel %s", r.Parcel.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.BlockID, r.Parcel.ID, r.Parcel.Address, string(attrs), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert parcel %s", r.Parcel.ID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit upsert parcels")
}

func (s *SQLiteStore) UpsertSnapshots(ctx context.Context, snaps []model.Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert snapshots")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots (block_id, snapshot_date, stats, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (block_id, snapshot_date) DO UPDATE SET
		   stats = excluded.stats,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert snapshots")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, snap := range snaps {
		stats, err := json.Marshal(snap)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal snapshot %s", snap.BlockID)
		}
		if _, err := stmt.ExecContext(ctx, snap.BlockID, snap.Date.Format("2006-01-02"), string(stats), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert snapshot %s", snap.BlockID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit upsert snapshots")
}

func (s *SQLiteStore) GetBlock(ctx context.Context, blockID string) (*model.BlockSummary, error) {
	var b model.BlockSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT block_id, street, from_cross, to_cross, parcel_count, min_house_number, max_house_number, geom, updated_at
		 FROM blocks WHERE block_id = ?`,
		blockID,
	).Scan(&b.BlockID, &b.Street, &b.FromCross, &b.ToCross, &b.ParcelCount, &b.MinHouseNumber, &b.MaxHouseNumber, &b.Geometry, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get block %s", blockID)
	}
	return &b, nil
}

func (s *SQLiteStore) ListBlocks(ctx context.Context, filter BlockFilter) ([]model.BlockSummary, int, error) {
	where := `WHERE 1=1`
	var args []any
	if filter.Street != "" {
		where += ` AND street LIKE '%' || ? || '%'`
		args = append(args, filter.Street)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM blocks `+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count blocks")
	}

	order := ` ORDER BY street, block_id`
	if filter.SortBy == "parcel_count" {
		order = ` ORDER BY parcel_count DESC, block_id`
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, street, from_cross, to_cross, parcel_count, min_house_number, max_house_number, geom, updated_at
		 FROM blocks `+where+order+` LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list blocks")
	}
	defer rows.Close()

	var blocks []model.BlockSummary
	for rows.Next() {
		var b model.BlockSummary
		if err := rows.Scan(&b.BlockID, &b.Street, &b.FromCross, &b.ToCross, &b.ParcelCount, &b.MinHouseNumber, &b.MaxHouseNumber, &b.Geometry, &b.UpdatedAt); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan block row")
		}
		blocks = append(blocks, b)
	}
	return blocks, total, eris.Wrap(rows.Err(), "sqlite: list blocks iterate")
}

func (s *SQLiteStore) ListParcels(ctx context.Context, blockID string) ([]model.Parcel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attrs FROM parcels WHERE block_id = ? ORDER BY parcel_id`,
		blockID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list parcels %s", blockID)
	}
	defer rows.Close()

	var parcels []model.Parcel
	for rows.Next() {
		var attrs string
		if err := rows.Scan(&attrs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel row")
		}
		var p model.Parcel
		if err := json.Unmarshal([]byte(attrs), &p); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal parcel in %s", blockID)
		}
		parcels = append(parcels, p)
	}
	return parcels, eris.Wrap(rows.Err(), "sqlite: list parcels iterate")
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, blockID string, date time.Time) (*model.Snapshot, error) {
	var stats string
	err := s.db.QueryRowContext(ctx,
		`SELECT stats FROM snapshots WHERE block_id = ? AND snapshot_date = ?`,
		blockID, date.Format("2006-01-02"),
	).Scan(&stats)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", blockID)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(stats), &snap); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal snapshot %s", blockID)
	}
	return &snap, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, mode string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Mode, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET total = ?, assigned = ?, errors = ?, blocks = ?, finished_at = ? WHERE id = ?`,
		run.Total, run.Assigned, run.Errors, run.Blocks, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, total, assigned, errors, blocks, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Mode, &r.Total, &r.Assigned, &r.Errors, &r.Blocks, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run row")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
