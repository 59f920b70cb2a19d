package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/analytics"
	"github.com/detroit-blocks/blockline/internal/model"
	"github.com/detroit-blocks/blockline/internal/store"
)

var (
	analyticsStreet string
	analyticsDate   string
	analyticsRules  string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Compute and persist per-block analytics snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		now := time.Now().UTC()
		if analyticsDate != "" {
			parsed, err := time.Parse("2006-01-02", analyticsDate)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", analyticsDate)
			}
			now = parsed
		}

		rules := analytics.DefaultRules()
		if analyticsRules != "" {
			loaded, err := analytics.LoadRules(analyticsRules)
			if err != nil {
				return err
			}
			rules = loaded
		}
		if cfg.Analytics.RecentSaleYears > 0 {
			rules.RecentSaleYears = cfg.Analytics.RecentSaleYears
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var snapshots []model.Snapshot
		const pageSize = 200
		for offset := 0; ; offset += pageSize {
			blocks, _, err := st.ListBlocks(ctx, store.BlockFilter{
				Street: analyticsStreet,
				Limit:  pageSize,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			if len(blocks) == 0 {
				break
			}
			for _, b := range blocks {
				parcels, err := st.ListParcels(ctx, b.BlockID)
				if err != nil {
					return err
				}
				snapshots = append(snapshots, analytics.ComputeWithRules(b.BlockID, parcels, now, rules))
			}
		}

		if len(snapshots) == 0 {
			zap.L().Info("no blocks to snapshot")
			return nil
		}

		n, err := st.UpsertSnapshots(ctx, snapshots)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(map[string]any{
			"snapshots": n,
			"date":      now.Format("2006-01-02"),
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsStreet, "street", "", "limit to blocks on streets matching this name")
	analyticsCmd.Flags().StringVar(&analyticsDate, "date", "", "snapshot date, YYYY-MM-DD (default today)")
	analyticsCmd.Flags().StringVar(&analyticsRules, "rules", "", "YAML classification rules file")
	rootCmd.AddCommand(analyticsCmd)
}
