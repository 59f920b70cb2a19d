package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/resilience"
	"github.com/detroit-blocks/blockline/internal/store"
)

var (
	retryDLQPath   string
	retryErrorType string
	retryLimit     int
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-drive dead-lettered parcel chunks",
	Long:  "Reads the dead-letter file written by assign, re-upserts the chunks that are due for another attempt, and rewrites the file with whatever is still pending.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		entries, err := readDLQ(retryDLQPath)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(`{"eligible": 0, "succeeded": 0, "failed": 0, "remaining": 0}`)
			return nil
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := resilience.DLQFilter{ErrorType: retryErrorType, Limit: retryLimit}
		remaining, summary := redriveDLQ(ctx, st, entries, filter, time.Now().UTC())

		if len(remaining) == 0 {
			if err := os.Remove(retryDLQPath); err != nil {
				return eris.Wrapf(err, "remove %s", retryDLQPath)
			}
		} else if err := writeDLQ(retryDLQPath, remaining); err != nil {
			return err
		}

		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// redriveSummary counts the outcome of one retry pass.
type redriveSummary struct {
	Eligible  int `json:"eligible"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// redriveDLQ re-upserts every due entry once. Entries that succeed drop out;
// entries that fail again are rescheduled; everything else is carried over
// untouched. Each entry gets a single attempt per pass; the per-entry
// schedule spaces passes apart.
func redriveDLQ(ctx context.Context, st store.Store, entries []resilience.DLQEntry, filter resilience.DLQFilter, now time.Time) ([]resilience.DLQEntry, redriveSummary) {
	due := make(map[string]bool)
	for _, e := range resilience.SelectRetryable(entries, filter, now) {
		due[e.ID] = true
	}

	var summary redriveSummary
	summary.Eligible = len(due)

	remaining := make([]resilience.DLQEntry, 0, len(entries))
	for _, e := range entries {
		if !due[e.ID] {
			remaining = append(remaining, e)
			continue
		}

		rows := make([]store.ParcelRow, 0, len(e.Chunk))
		for _, a := range e.Chunk {
			rows = append(rows, store.ParcelRow{BlockID: a.BlockID, Parcel: a.Parcel})
		}
		if _, err := st.UpsertParcels(ctx, rows); err != nil {
			zap.L().Error("retry upsert failed",
				zap.String("entry", e.ID),
				zap.Int("retry_count", e.RetryCount+1),
				zap.Error(err),
			)
			e.RecordFailure(err, now)
			summary.Failed++
			remaining = append(remaining, e)
			continue
		}
		summary.Succeeded++
	}

	summary.Remaining = len(remaining)
	return remaining, summary
}

func readDLQ(path string) ([]resilience.DLQEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var entries []resilience.DLQEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return entries, nil
}

func init() {
	retryCmd.Flags().StringVar(&retryDLQPath, "dlq", "blockline-dlq.json", "dead-letter file to re-drive")
	retryCmd.Flags().StringVar(&retryErrorType, "type", "", "only retry entries of this error type (transient|permanent)")
	retryCmd.Flags().IntVar(&retryLimit, "limit", 0, "cap the number of entries retried this pass (0 = all)")
	rootCmd.AddCommand(retryCmd)
}
