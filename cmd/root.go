package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blockline",
	Short: "Detroit parcel-to-block assignment and analytics engine",
	Long:  "Assigns parcels to blocks by address numbering or street geometry, aggregates per-block analytics, and serves the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		switch cmd.Name() {
		case "assign", "segment", "analytics", "serve", "migrate", "status", "retry":
			if err := cfg.Validate(cmd.Name()); err != nil {
				return err
			}
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
