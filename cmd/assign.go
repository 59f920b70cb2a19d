package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/block"
	"github.com/detroit-blocks/blockline/internal/ingest"
	"github.com/detroit-blocks/blockline/internal/model"
	"github.com/detroit-blocks/blockline/internal/resilience"
	"github.com/detroit-blocks/blockline/internal/store"
)

var (
	assignNatural      bool
	assignBlockSize    int
	assignGapThreshold int
	assignChunkSize    int
	assignSheet        string
	assignDryRun       bool
	assignDLQPath      string
)

var assignCmd = &cobra.Command{
	Use:   "assign <parcels.csv|parcels.xlsx>",
	Short: "Assign parcels to blocks by address numbering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := block.Options{
			BlockSize:            cfg.Assign.BlockSize,
			UseNaturalBoundaries: cfg.Assign.UseNaturalBoundaries || assignNatural,
			GapThreshold:         cfg.Assign.GapThreshold,
		}
		if assignBlockSize > 0 {
			opts.BlockSize = assignBlockSize
		}
		if assignGapThreshold > 0 {
			opts.GapThreshold = assignGapThreshold
		}

		res, err := runAssign(ctx, args[0], opts)
		if err != nil {
			return err
		}

		validation := block.Validate(res)
		for _, issue := range validation.Issues {
			zap.L().Warn("validation issue",
				zap.String("type", issue.Type),
				zap.String("block", issue.BlockID),
				zap.String("severity", issue.Severity),
				zap.String("message", issue.Message),
			)
		}

		if !assignDryRun {
			if err := persistAssignment(ctx, res, modeLabel(opts)); err != nil {
				return err
			}
		}

		out, _ := json.MarshalIndent(struct {
			Summary block.Summary `json:"summary"`
			Issues  int           `json:"validation_issues"`
		}{res.Summary, len(validation.Issues)}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func modeLabel(opts block.Options) string {
	if opts.UseNaturalBoundaries {
		return "natural"
	}
	return "fixed"
}

// runAssign reads the source file and produces one merged result. Fixed mode
// assigns chunk by chunk; natural mode needs every parcel of a street in
// view, so the file is drained first.
func runAssign(ctx context.Context, path string, opts block.Options) (*block.Result, error) {
	chunkSize := cfg.Ingest.ChunkSize
	if assignChunkSize > 0 {
		chunkSize = assignChunkSize
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		parcels, err := ingest.ReadXLSX(path, ingest.XLSXOptions{SheetName: assignSheet})
		if err != nil {
			return nil, err
		}
		return block.Assign(parcels, opts), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	parcelCh, errCh := ingest.StreamCSV(ctx, f, ingest.CSVOptions{})
	chunks := ingest.Chunks(ctx, parcelCh, chunkSize)

	res := &block.Result{BlockStats: make(map[string]*model.BlockStats)}
	var all []model.Parcel
	for chunk := range chunks {
		if opts.UseNaturalBoundaries {
			all = append(all, chunk...)
			continue
		}
		res.Merge(block.Assign(chunk, opts))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	if opts.UseNaturalBoundaries {
		return block.Assign(all, opts), nil
	}
	return res, nil
}

// persistAssignment writes blocks, memberships, and the run record. Parcel
// chunks that fail to upsert land in a dead-letter file instead of aborting
// the run.
func persistAssignment(ctx context.Context, res *block.Result, mode string) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, mode)
	if err != nil {
		return err
	}

	blocks := make([]model.BlockSummary, 0, len(res.BlockStats))
	for _, stats := range res.BlockStats {
		blocks = append(blocks, model.BlockSummary{
			BlockID:        stats.BlockID,
			Street:         stats.Street,
			ParcelCount:    stats.ParcelCount,
			MinHouseNumber: stats.MinHouseNumber,
			MaxHouseNumber: stats.MaxHouseNumber,
		})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].BlockID < blocks[j].BlockID })
	if _, err := st.UpsertBlocks(ctx, blocks); err != nil {
		return err
	}

	rows := make([]store.ParcelRow, 0, len(res.Assigned))
	for _, a := range res.Assigned {
		if a.BlockID == "" {
			continue
		}
		rows = append(rows, store.ParcelRow{BlockID: a.BlockID, Parcel: a.Parcel})
	}

	var dead []resilience.DLQEntry
	chunkSize := cfg.Ingest.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		if _, err := st.UpsertParcels(ctx, rows[start:end]); err != nil {
			zap.L().Error("parcel chunk upsert failed",
				zap.Int("offset", start),
				zap.Error(err),
			)
			chunk := make([]model.Assignment, 0, end-start)
			for _, r := range rows[start:end] {
				chunk = append(chunk, model.Assignment{Parcel: r.Parcel, BlockID: r.BlockID})
			}
			now := time.Now().UTC()
			dead = append(dead, resilience.DLQEntry{
				ID:           uuid.New().String(),
				Chunk:        chunk,
				Error:        err.Error(),
				ErrorType:    resilience.ClassifyError(err),
				FailedStage:  "upsert_parcels",
				MaxRetries:   3,
				NextRetryAt:  now,
				CreatedAt:    now,
				LastFailedAt: now,
			})
		}
	}
	if len(dead) > 0 {
		if err := writeDLQ(assignDLQPath, dead); err != nil {
			return err
		}
		zap.L().Warn("dead-lettered parcel chunks",
			zap.Int("chunks", len(dead)),
			zap.String("path", assignDLQPath),
		)
	}

	run.Total = res.Summary.Total
	run.Assigned = res.Summary.Assigned
	run.Errors = res.Summary.ParseErrors
	run.Blocks = res.Summary.UniqueBlocks
	return st.FinishRun(ctx, run)
}

func writeDLQ(path string, entries []resilience.DLQEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal dead-letter entries")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

func init() {
	assignCmd.Flags().BoolVar(&assignNatural, "natural", false, "group by numbering gaps instead of fixed bins")
	assignCmd.Flags().IntVar(&assignBlockSize, "block-size", 0, "house-number bin width (default from config)")
	assignCmd.Flags().IntVar(&assignGapThreshold, "gap-threshold", 0, "natural-boundary gap cutoff (default from config)")
	assignCmd.Flags().IntVar(&assignChunkSize, "chunk-size", 0, "parcels per processing chunk (default from config)")
	assignCmd.Flags().StringVar(&assignSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	assignCmd.Flags().BoolVar(&assignDryRun, "dry-run", false, "assign and validate without persisting")
	assignCmd.Flags().StringVar(&assignDLQPath, "dlq", "blockline-dlq.json", "dead-letter file for failed parcel chunks")
	rootCmd.AddCommand(assignCmd)
}
