// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/newswrangle/internal/ingest"
	"github.com/pdiddy/newswrangle/internal/logger"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe extracted, flattened and retained ingestion state",
	Long: `Reset deletes the extraction directory, the flat directory and the
retained archive copies, then recreates them empty. Source archives, the
output file and the run ledger are left alone. Reset is safe to repeat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := ingest.New(cfg.Ingest, cfg.Unify.Pattern, logger.Named(log, "ingest"))
		if err != nil {
			return err
		}
		if err := in.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "reset %s, %s and retained archives\n", cfg.Ingest.ExtractDir, cfg.Ingest.FlatDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
