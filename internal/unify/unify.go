// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package unify projects every flattened JSON document onto the fixed
// article columns, producing one row per well-formed document.
package unify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// ErrMalformed marks a document that could not be decoded into a JSON
// object. Malformed documents are skipped, never fatal.
var ErrMalformed = errors.New("malformed document")

// DocResult is the outcome of unifying one document: either a record or
// the reason it was skipped.
type DocResult struct {
	SourceFile string
	Record     *types.ArticleRecord
	Err        error
}

// Skipped reports whether the document produced no row.
func (r DocResult) Skipped() bool {
	return r.Record == nil
}

// Stats counts documents seen by one Unify call.
// Attempted always equals Emitted + Skipped.
type Stats struct {
	Attempted int `json:"attempted" yaml:"attempted"`
	Emitted   int `json:"emitted" yaml:"emitted"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

// Table is the unified row set, ordered by SourceFile.
type Table struct {
	Rows  []types.ArticleRecord
	Stats Stats
}

// Unifier reads documents from the flat directory.
type Unifier struct {
	cfg types.UnifyConfig
	dir string
	log zerolog.Logger
}

// New creates a Unifier over flatDir.
func New(cfg types.UnifyConfig, flatDir string, log zerolog.Logger) *Unifier {
	if cfg.Pattern == "" {
		cfg.Pattern = "*.json"
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Unifier{cfg: cfg, dir: flatDir, log: log}
}

// UnifyFile decodes one document and projects it onto Columns.
func (u *Unifier) UnifyFile(path string) DocResult {
	res := DocResult{SourceFile: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("reading %s: %w", res.SourceFile, err)
		return res
	}
	doc, err := Decode(data, u.cfg.MaxDepth)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %v", ErrMalformed, res.SourceFile, err)
		return res
	}

	rec := &types.ArticleRecord{SourceFile: res.SourceFile}
	for _, c := range Columns {
		*c.Field(rec) = Project(doc, c.Path)
	}
	res.Record = rec
	return res
}

// Unify processes every document in the flat directory matching the
// configured pattern. Documents are decoded in parallel; the returned rows
// are ordered by SourceFile regardless of scheduling. A missing or
// unreadable flat directory is an error. An empty one yields an empty table.
func (u *Unifier) Unify(ctx context.Context) (Table, error) {
	var table Table

	info, err := os.Stat(u.dir)
	if err != nil {
		return table, fmt.Errorf("reading flat directory %s: %w", u.dir, err)
	}
	if !info.IsDir() {
		return table, fmt.Errorf("flat directory %s is not a directory", u.dir)
	}
	files, err := filepath.Glob(filepath.Join(u.dir, u.cfg.Pattern))
	if err != nil {
		return table, fmt.Errorf("matching %q in %s: %w", u.cfg.Pattern, u.dir, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	workers := u.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]DocResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = u.UnifyFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return table, fmt.Errorf("unifying documents: %w", err)
	}

	table.Rows = make([]types.ArticleRecord, 0, len(results))
	for _, r := range results {
		table.Stats.Attempted++
		if r.Skipped() {
			table.Stats.Skipped++
			u.log.Debug().Err(r.Err).Str("file", r.SourceFile).Msg("skipping document")
			continue
		}
		table.Stats.Emitted++
		table.Rows = append(table.Rows, *r.Record)
	}

	ev := u.log.Info()
	if table.Stats.Skipped > 0 {
		ev = u.log.Warn()
	}
	ev.Int("attempted", table.Stats.Attempted).
		Int("emitted", table.Stats.Emitted).
		Int("skipped", table.Stats.Skipped).
		Int("workers", workers).
		Msg("unify summary")
	return table, nil
}
