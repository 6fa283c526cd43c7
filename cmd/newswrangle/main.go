// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the newswrangle CLI.
// Each pipeline stage that makes sense on its own is a subcommand; "run"
// executes ingest, unify, derive and export end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/newswrangle/internal/logger"
	"github.com/pdiddy/newswrangle/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is loaded once per invocation in PersistentPreRunE.
	cfg types.PipelineConfig
	log zerolog.Logger
)

// rootCmd is the base command for the newswrangle CLI.
var rootCmd = &cobra.Command{
	Use:   "newswrangle",
	Short: "Unify archived news article dumps into one analytic table",
	Long: `newswrangle extracts compressed article archives, flattens their JSON
documents into one directory with batch-tagged names, projects every
document onto a fixed set of columns, derives calendar and engagement
features, and writes the result as one delimited file.

Settings come from newswrangle.yaml, NEWSWRANGLE_* environment variables
(e.g. NEWSWRANGLE_INGEST_POLICY) and command flags, in increasing priority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./newswrangle.yaml or ~/.config/newswrangle/config.yaml)")
	pf.String("source-dir", "", "directory holding the source archives")
	pf.String("archive-glob", "", "glob selecting archives inside the source directory")
	pf.String("extract-dir", "", "directory for per-archive extraction")
	pf.String("flat-dir", "", "directory of flattened JSON documents")
	pf.String("state-dir", "", "directory for retained archives and ingestion markers")
	pf.String("policy", "", "idempotency policy: skip-existing, compare-reset, always-reset")
	pf.String("ledger", "", "run ledger database path (empty disables)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: console, json")

	bindFlags(rootCmd, true, map[string]string{
		"ingest.source_dir":   "source-dir",
		"ingest.archive_glob": "archive-glob",
		"ingest.extract_dir":  "extract-dir",
		"ingest.flat_dir":     "flat-dir",
		"ingest.state_dir":    "state-dir",
		"ingest.policy":       "policy",
		"ledger.path":         "ledger",
		"log.level":           "log-level",
		"log.format":          "log-format",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("newswrangle")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "newswrangle"))
		}
	}

	viper.SetEnvPrefix("NEWSWRANGLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no config file mentions them.
func setDefaults(d types.PipelineConfig) {
	viper.SetDefault("ingest.source_dir", d.Ingest.SourceDir)
	viper.SetDefault("ingest.archive_glob", d.Ingest.ArchiveGlob)
	viper.SetDefault("ingest.extract_dir", d.Ingest.ExtractDir)
	viper.SetDefault("ingest.flat_dir", d.Ingest.FlatDir)
	viper.SetDefault("ingest.state_dir", d.Ingest.StateDir)
	viper.SetDefault("ingest.batch_code_pattern", d.Ingest.BatchCodePattern)
	viper.SetDefault("ingest.policy", string(d.Ingest.Policy))
	viper.SetDefault("unify.pattern", d.Unify.Pattern)
	viper.SetDefault("unify.max_depth", d.Unify.MaxDepth)
	viper.SetDefault("unify.workers", d.Unify.Workers)
	viper.SetDefault("derive.high_engagement_quantile", d.Derive.HighEngagementQuantile)
	viper.SetDefault("export.output_path", d.Export.OutputPath)
	viper.SetDefault("export.delimiter", d.Export.Delimiter)
	viper.SetDefault("export.manifest", d.Export.Manifest)
	viper.SetDefault("ledger.path", d.Ledger.Path)
	viper.SetDefault("metrics.textfile", d.Metrics.Textfile)
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
}

// bindFlags binds config keys to the named flags of cmd.
func bindFlags(cmd *cobra.Command, persistent bool, keys map[string]string) {
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func loadConfig() (types.PipelineConfig, error) {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("reading configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
