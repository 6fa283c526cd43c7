// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// Manifest summarizes one pipeline run. It is written next to the output
// file and never contains article rows.
type Manifest struct {
	RunID      string    `yaml:"run_id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Output     string    `yaml:"output"`

	Ingest ManifestIngest `yaml:"ingest"`
	Unify  ManifestUnify  `yaml:"unify"`
	Derive ManifestDerive `yaml:"derive"`

	Columns  []string              `yaml:"columns"`
	Archives []types.ArchiveDigest `yaml:"archives,omitempty"`
}

// ManifestIngest holds ingestion counters.
type ManifestIngest struct {
	Policy    string `yaml:"policy"`
	Archives  int    `yaml:"archives"`
	Extracted int    `yaml:"extracted"`
	Failed    int    `yaml:"failed"`
	Documents int    `yaml:"documents"`
	Skipped   bool   `yaml:"skipped"`
}

// ManifestUnify holds document counters.
type ManifestUnify struct {
	Attempted int `yaml:"attempted"`
	Emitted   int `yaml:"emitted"`
	Skipped   int `yaml:"skipped"`
}

// ManifestDerive holds the engagement threshold. Threshold is absent for an
// empty table.
type ManifestDerive struct {
	Quantile       float64  `yaml:"quantile"`
	Threshold      *float64 `yaml:"threshold,omitempty"`
	HighEngagement int      `yaml:"high_engagement"`
}

// ManifestPath returns the manifest location for an output file:
// "out/summary.csv" becomes "out/summary.manifest.yaml".
func ManifestPath(output string) string {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return base + ".manifest.yaml"
}

// WriteManifest writes m as YAML to path, replacing any previous manifest.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return m, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}
