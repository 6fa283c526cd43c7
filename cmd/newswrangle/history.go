// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/newswrangle/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded pipeline runs",
	Long: `History reads the run ledger and lists recent runs, newest first,
with their counters. Use --yaml for the full record including the
SHA-256 digest of every archive each run saw.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show (0 = all)")
	historyCmd.Flags().Bool("yaml", false, "output runs as YAML")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Ledger.Path == "" {
		return fmt.Errorf("run ledger is disabled: set ledger.path or --ledger")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer l.Close()

	if asYAML {
		return l.ExportYAML(cmd.Context(), os.Stdout, limit)
	}

	runs, err := l.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-14s  %-6s  %-13s  %8s  %6s  %7s  %s\n",
		"Run", "Started", "Status", "Policy", "Archives", "Rows", "Skipped", "Input")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 115))
	for _, r := range runs {
		var size int64
		for _, d := range r.Digests {
			size += d.Size
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-14s  %-6s  %-13s  %8d  %6d  %7d  %s\n",
			r.ID, humanize.Time(r.StartedAt), r.Status, r.Policy,
			r.Archives, r.Emitted, r.Skipped, humanize.Bytes(uint64(size)))
	}
	fmt.Fprintf(os.Stdout, "\n%d run(s)\n", len(runs))
	return nil
}
