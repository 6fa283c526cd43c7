// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, PolicySkipExisting, cfg.Ingest.Policy)
	assert.Equal(t, 0.75, cfg.Derive.HighEngagementQuantile)
	assert.Equal(t, 10, cfg.Unify.MaxDepth)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr string
	}{
		{"unknown policy", func(c *PipelineConfig) { c.Ingest.Policy = "sometimes" }, "Ingest.Policy"},
		{"missing source", func(c *PipelineConfig) { c.Ingest.SourceDir = "" }, "Ingest.SourceDir"},
		{"flat equals extract", func(c *PipelineConfig) { c.Ingest.FlatDir = c.Ingest.ExtractDir }, "Ingest.FlatDir"},
		{"quantile too high", func(c *PipelineConfig) { c.Derive.HighEngagementQuantile = 1 }, "HighEngagementQuantile"},
		{"quantile zero", func(c *PipelineConfig) { c.Derive.HighEngagementQuantile = 0 }, "HighEngagementQuantile"},
		{"depth too deep", func(c *PipelineConfig) { c.Unify.MaxDepth = 13 }, "Unify.MaxDepth"},
		{"depth zero", func(c *PipelineConfig) { c.Unify.MaxDepth = 0 }, "Unify.MaxDepth"},
		{"negative workers", func(c *PipelineConfig) { c.Unify.Workers = -1 }, "Unify.Workers"},
		{"two-char delimiter", func(c *PipelineConfig) { c.Export.Delimiter = ";;" }, "Export.Delimiter"},
		{"bad log level", func(c *PipelineConfig) { c.Log.Level = "loud" }, "Log.Level"},
		{"bad batch pattern", func(c *PipelineConfig) { c.Ingest.BatchCodePattern = "(" }, "batch_code_pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAcceptsEveryPolicy(t *testing.T) {
	for _, p := range Policies {
		cfg := DefaultConfig()
		cfg.Ingest.Policy = p
		assert.NoError(t, cfg.Validate(), p)
	}
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', ExportConfig{}.DelimiterRune())
	assert.Equal(t, '\t', ExportConfig{Delimiter: "\t"}.DelimiterRune())
	assert.Equal(t, '|', ExportConfig{Delimiter: "|"}.DelimiterRune())
}

func TestPtr(t *testing.T) {
	p := Ptr("x")
	require.NotNil(t, p)
	assert.Equal(t, "x", *p)
}
