// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a PipelineConfig fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// IdempotencyPolicy selects how ingestion treats a previously extracted
// flat directory. Exactly one policy applies to a run; extraction is
// all-or-nothing under every policy.
type IdempotencyPolicy string

const (
	// PolicySkipExisting skips extraction entirely when the flat directory
	// already holds documents.
	PolicySkipExisting IdempotencyPolicy = "skip-existing"

	// PolicyCompareReset compares every archive byte for byte against a
	// retained copy; any difference wipes all derived state and re-extracts.
	PolicyCompareReset IdempotencyPolicy = "compare-reset"

	// PolicyAlwaysReset wipes and re-extracts on every run.
	PolicyAlwaysReset IdempotencyPolicy = "always-reset"
)

// Policies lists the accepted policy values in documentation order.
var Policies = []IdempotencyPolicy{PolicySkipExisting, PolicyCompareReset, PolicyAlwaysReset}

// IngestConfig holds settings for the archive ingestion stage.
type IngestConfig struct {
	// SourceDir is the resolved local directory holding the archives.
	SourceDir string `json:"source_dir" yaml:"source_dir" mapstructure:"source_dir" validate:"required"`

	// ArchiveGlob selects archives inside SourceDir (e.g. "*.zip").
	ArchiveGlob string `json:"archive_glob" yaml:"archive_glob" mapstructure:"archive_glob" validate:"required"`

	// ExtractDir holds one private subdirectory per archive.
	ExtractDir string `json:"extract_dir" yaml:"extract_dir" mapstructure:"extract_dir" validate:"required"`

	// FlatDir is the single shared directory of renamed JSON documents.
	FlatDir string `json:"flat_dir" yaml:"flat_dir" mapstructure:"flat_dir" validate:"required,nefield=ExtractDir"`

	// StateDir holds retained archive copies for the compare-reset policy.
	StateDir string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir" validate:"required"`

	// BatchCodePattern finds the batch code in an archive filename.
	BatchCodePattern string `json:"batch_code_pattern" yaml:"batch_code_pattern" mapstructure:"batch_code_pattern" validate:"required"`

	// Policy is the idempotency contract for the run.
	Policy IdempotencyPolicy `json:"policy" yaml:"policy" mapstructure:"policy" validate:"required,oneof=skip-existing compare-reset always-reset"`
}

// UnifyConfig holds settings for the record unification stage.
type UnifyConfig struct {
	// Pattern selects documents inside the flat directory.
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern" validate:"required"`

	// MaxDepth bounds JSON traversal; deeper values are kept as raw JSON text.
	MaxDepth int `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth" validate:"min=1,max=12"`

	// Workers is the number of parallel decoders (0 = GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"min=0"`
}

// DeriveConfig holds settings for feature derivation.
type DeriveConfig struct {
	// HighEngagementQuantile is the quantile of Engagement_Score above which
	// a row is flagged High_Engagement (default 0.75).
	HighEngagementQuantile float64 `json:"high_engagement_quantile" yaml:"high_engagement_quantile" mapstructure:"high_engagement_quantile" validate:"gt=0,lt=1"`
}

// ExportConfig holds settings for the delimited output file.
type ExportConfig struct {
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path" validate:"required"`

	// Delimiter is a single character separating fields.
	Delimiter string `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter" validate:"required,len=1"`

	// Manifest writes a YAML run summary next to the output when true.
	Manifest bool `json:"manifest" yaml:"manifest" mapstructure:"manifest"`
}

// LedgerConfig locates the SQLite run ledger. An empty Path disables it.
type LedgerConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// MetricsConfig locates the Prometheus textfile. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `json:"textfile" yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// PipelineConfig groups all stage configurations. It is built once per
// process and passed explicitly into each stage.
type PipelineConfig struct {
	Ingest  IngestConfig  `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Unify   UnifyConfig   `json:"unify" yaml:"unify" mapstructure:"unify"`
	Derive  DeriveConfig  `json:"derive" yaml:"derive" mapstructure:"derive"`
	Export  ExportConfig  `json:"export" yaml:"export" mapstructure:"export"`
	Ledger  LedgerConfig  `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file, flag or
// environment variable overrides a key. Paths mirror the directory layout
// created by "mage init".
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Ingest: IngestConfig{
			SourceDir:        "data",
			ArchiveGlob:      "*.zip",
			ExtractDir:       "work/unzipped_all",
			FlatDir:          "work/unzipped_flat",
			StateDir:         "work/state",
			BatchCodePattern: `\d{8,}`,
			Policy:           PolicySkipExisting,
		},
		Unify: UnifyConfig{
			Pattern:  "*.json",
			MaxDepth: 10,
		},
		Derive: DeriveConfig{
			HighEngagementQuantile: 0.75,
		},
		Export: ExportConfig{
			OutputPath: "all_articles_summary.csv",
			Delimiter:  ",",
			Manifest:   true,
		},
		Ledger: LedgerConfig{
			Path: "work/state/ledger.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the batch code pattern compiles.
// All failures wrap ErrInvalidConfig.
func (c PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := regexp.Compile(c.Ingest.BatchCodePattern); err != nil {
		return fmt.Errorf("%w: batch_code_pattern: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune, defaulting to ','.
func (c ExportConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}
