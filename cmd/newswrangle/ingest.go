// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/newswrangle/internal/ingest"
	"github.com/pdiddy/newswrangle/internal/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract and flatten source archives only",
	Long: `Ingest applies the configured idempotency policy to the source
archives: it either keeps the existing flat directory or wipes derived
state and extracts every archive into its own directory, copying JSON
documents into the flat directory as <stem>_<batchcode>.json.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Bool("strict", false, "exit non-zero when any archive failed extraction")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	in, err := ingest.New(cfg.Ingest, cfg.Unify.Pattern, logger.Named(log, "ingest"))
	if err != nil {
		return err
	}
	res, err := in.Ingest(cmd.Context())
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintf(os.Stdout, "extraction skipped (%s): %s already populated\n", res.Policy, cfg.Ingest.FlatDir)
		return nil
	}
	for _, d := range res.Digests {
		status := "extracted"
		if d.Failed {
			status = "failed   "
		}
		fmt.Fprintf(os.Stdout, "%s %s [%s] %d document(s)\n", status, d.Name, d.BatchCode, d.Documents)
	}
	fmt.Fprintf(os.Stdout, "\nextracted: %d, failed: %d, documents: %d, overwritten: %d\n",
		res.Extracted, res.Failed, res.Documents, res.Overwritten)

	if strict, _ := cmd.Flags().GetBool("strict"); strict && res.HasFailures() {
		return fmt.Errorf("%d archive(s) failed extraction", res.Failed)
	}
	return nil
}
