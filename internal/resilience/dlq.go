package resilience

import (
	"time"

	"github.com/detroit-blocks/blockline/internal/model"
)

// DLQEntry represents a parcel chunk whose persistence failed and can be
// retried later. The chunk keeps each parcel's block id so a retry can
// re-upsert the rows without re-running assignment.
type DLQEntry struct {
	ID           string             `json:"id"`
	Chunk        []model.Assignment `json:"chunk"`
	Error        string             `json:"error"`
	ErrorType    string             `json:"error_type"` // "transient" or "permanent"
	FailedStage  string             `json:"failed_stage,omitempty"`
	RetryCount   int                `json:"retry_count"`
	MaxRetries   int                `json:"max_retries"`
	NextRetryAt  time.Time          `json:"next_retry_at"`
	CreatedAt    time.Time          `json:"created_at"`
	LastFailedAt time.Time          `json:"last_failed_at"`
}

// DLQFilter selects entries when re-driving the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// RecordFailure notes another failed attempt and pushes the next one out
// exponentially (1m, 2m, 4m, ... capped at an hour).
func (e *DLQEntry) RecordFailure(err error, now time.Time) {
	e.RetryCount++
	e.Error = err.Error()
	e.ErrorType = ClassifyError(err)
	e.LastFailedAt = now

	shift := min(e.RetryCount-1, 6)
	e.NextRetryAt = now.Add(min(time.Minute<<shift, time.Hour))
}

// SelectRetryable returns the entries due for another attempt: the type
// filter matches, the retry budget is not spent, and the schedule has come
// due. A non-positive limit means no cap.
func SelectRetryable(entries []DLQEntry, f DLQFilter, now time.Time) []DLQEntry {
	var due []DLQEntry
	for _, e := range entries {
		if f.ErrorType != "" && e.ErrorType != f.ErrorType {
			continue
		}
		if !e.CanRetry() || now.Before(e.NextRetryAt) {
			continue
		}
		due = append(due, e)
		if f.Limit > 0 && len(due) == f.Limit {
			break
		}
	}
	return due
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
