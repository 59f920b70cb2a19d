package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "blocks.blocks",
		Columns:      []string{"block_id", "street"},
		ConflictKeys: []string{"block_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "blocks.blocks",
		ConflictKeys: []string{"block_id"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "blocks.blocks",
		Columns: []string{"block_id", "street"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_TempTableFlow(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_blocks_blocks"}, []string{"block_id", "street"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "blocks"\."blocks"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"woodward_1200_1299", "woodward"}, {"woodward_1300_1399", "woodward"}}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "blocks.blocks",
		Columns:      []string{"block_id", "street"},
		ConflictKeys: []string{"block_id"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertConfig_UpdateColumns(t *testing.T) {
	cfg := UpsertConfig{
		Columns:      []string{"block_id", "street", "parcel_count"},
		ConflictKeys: []string{"block_id"},
	}
	assert.Equal(t, []string{"street", "parcel_count"}, cfg.updateColumns())

	cfg.UpdateCols = []string{"parcel_count"}
	assert.Equal(t, []string{"parcel_count"}, cfg.updateColumns())
}

func TestUpsertConfig_MergeSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "blocks.blocks",
		Columns:      []string{"block_id", "street", "parcel_count"},
		ConflictKeys: []string{"block_id"},
	}
	want := `INSERT INTO "blocks"."blocks" ("block_id", "street", "parcel_count") ` +
		`SELECT "block_id", "street", "parcel_count" FROM "_tmp_upsert_blocks_blocks" ` +
		`ON CONFLICT ("block_id") DO UPDATE SET "street" = EXCLUDED."street", "parcel_count" = EXCLUDED."parcel_count"`
	assert.Equal(t, want, cfg.mergeSQL())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"blocks.parcels", `"blocks"."parcels"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"block_id", "street", "parcel_count"})
	assert.Equal(t, `"block_id", "street", "parcel_count"`, result)
}
