// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/newswrangle/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingest, unify, derive and export end to end",
	Long: `Run extracts the source archives under the configured idempotency
policy, unifies every flattened document into one table, derives the
calendar and engagement features, and writes the delimited output file.
Each run replaces the previous output. Corrupt archives and malformed
documents are logged and skipped.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("output", "", "output file path")
	runCmd.Flags().String("delimiter", "", "output field delimiter (single character)")
	runCmd.Flags().Float64("quantile", 0, "High_Engagement quantile in (0,1)")
	runCmd.Flags().Int("workers", 0, "parallel document decoders (0 = GOMAXPROCS)")
	runCmd.Flags().Int("max-depth", 0, "JSON nesting bound (1-12)")
	runCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file")
	runCmd.Flags().Bool("no-manifest", false, "do not write the YAML run manifest")
	runCmd.Flags().Bool("strict", false, "exit non-zero when any archive failed extraction")

	bindFlags(runCmd, false, map[string]string{
		"export.output_path":              "output",
		"export.delimiter":                "delimiter",
		"derive.high_engagement_quantile": "quantile",
		"unify.workers":                   "workers",
		"unify.max_depth":                 "max-depth",
		"metrics.textfile":                "metrics-textfile",
	})

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if noManifest, _ := cmd.Flags().GetBool("no-manifest"); noManifest {
		cfg.Export.Manifest = false
	}

	s, err := pipeline.Run(cmd.Context(), cfg, pipeline.Deps{Log: log})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "archives: %d, extracted: %d, failed: %d, extraction skipped: %t\n",
		s.Ingest.Archives, s.Ingest.Extracted, s.Ingest.Failed, s.Ingest.Skipped)
	fmt.Fprintf(os.Stdout, "documents: %d, rows: %d, skipped: %d, high engagement: %d\n",
		s.Unify.Attempted, s.Rows, s.Unify.Skipped, s.HighEngagement)
	fmt.Fprintf(os.Stdout, "wrote %s\n", s.Output)

	if strict, _ := cmd.Flags().GetBool("strict"); strict && s.Ingest.HasFailures() {
		return fmt.Errorf("%d archive(s) failed extraction", s.Ingest.Failed)
	}
	return nil
}
