package resilience

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detroit-blocks/blockline/internal/model"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"fresh entry", 0, 3, true},
		{"last allowed retry", 2, 3, true},
		{"budget spent", 3, 3, false},
		{"over budget", 7, 3, false},
		{"zero max never retries", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			assert.Equal(t, tt.want, e.CanRetry())
		})
	}
}

func TestDLQEntry_RecordFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := DLQEntry{MaxRetries: 3}

	e.RecordFailure(eris.New("store: upsert parcels: connection refused"), now)
	assert.Equal(t, 1, e.RetryCount)
	assert.Equal(t, "transient", e.ErrorType)
	assert.Equal(t, now, e.LastFailedAt)
	assert.Equal(t, now.Add(time.Minute), e.NextRetryAt)

	e.RecordFailure(eris.New("store: upsert parcels: connection refused"), now)
	assert.Equal(t, now.Add(2*time.Minute), e.NextRetryAt)

	// The schedule caps at an hour no matter how often an entry fails.
	e.RetryCount = 20
	e.RecordFailure(eris.New("still down"), now)
	assert.Equal(t, now.Add(time.Hour), e.NextRetryAt)
}

func TestSelectRetryable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []DLQEntry{
		{ID: "due-transient", ErrorType: "transient", MaxRetries: 3, NextRetryAt: now},
		{ID: "due-permanent", ErrorType: "permanent", MaxRetries: 3, NextRetryAt: now.Add(-time.Minute)},
		{ID: "not-yet-due", ErrorType: "transient", MaxRetries: 3, NextRetryAt: now.Add(time.Minute)},
		{ID: "budget-spent", ErrorType: "transient", RetryCount: 3, MaxRetries: 3, NextRetryAt: now},
	}

	ids := func(due []DLQEntry) []string {
		out := make([]string, len(due))
		for i, e := range due {
			out[i] = e.ID
		}
		return out
	}

	assert.Equal(t, []string{"due-transient", "due-permanent"},
		ids(SelectRetryable(entries, DLQFilter{}, now)))
	assert.Equal(t, []string{"due-transient"},
		ids(SelectRetryable(entries, DLQFilter{ErrorType: "transient"}, now)))
	assert.Equal(t, []string{"due-transient"},
		ids(SelectRetryable(entries, DLQFilter{Limit: 1}, now)))
	assert.Empty(t, SelectRetryable(entries, DLQFilter{ErrorType: "permanent", Limit: 5}, now.Add(-time.Hour)))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"service unavailable", NewTransientError(eris.New("geodata: status 503"), 503), "transient"},
		{"reset mid-page", eris.New("read tcp: connection reset by peer"), "transient"},
		{"bad parcel number", eris.New("address: no house number in \"WOODWARD AVE\""), "permanent"},
		{"constraint violation", eris.New("store: upsert parcels: duplicate key"), "permanent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

// The assign command persists entries as JSON, so the chunk payload has to
// survive a round trip with its block ids intact.
func TestDLQEntry_JSONCarriesChunk(t *testing.T) {
	entry := DLQEntry{
		ID: "chunk-0042",
		Chunk: []model.Assignment{{
			Parcel:  model.Parcel{ID: "13000123.001", Address: "1234 WOODWARD AVE"},
			BlockID: "woodward_1200_1299",
		}},
		Error:       "store: upsert parcels: connection refused",
		ErrorType:   "transient",
		FailedStage: "upsert_parcels",
		MaxRetries:  3,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var got DLQEntry
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "transient", got.ErrorType)
	require.Len(t, got.Chunk, 1)
	assert.Equal(t, "13000123.001", got.Chunk[0].Parcel.ID)
	assert.Equal(t, "woodward_1200_1299", got.Chunk[0].BlockID)
	assert.True(t, got.CanRetry())
}
