// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest extracts article archives into one flat directory of
// batch-tagged JSON documents under a single idempotency policy.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// ErrNoArchives is returned when the source directory holds no archive
// matching the configured glob. It is fatal for the run.
var ErrNoArchives = errors.New("no archives found")

// Result holds the outcome of an ingestion run.
type Result struct {
	Policy types.IdempotencyPolicy

	// Archives is the number of archives found in the source directory.
	Archives int
	// Extracted and Failed count archives processed in this run. Both are
	// zero when extraction was skipped.
	Extracted int
	Failed    int
	// Documents is the number of JSON files copied into the flat directory;
	// Overwritten counts copies that replaced an existing flattened file.
	Documents   int
	Overwritten int

	// Skipped reports that the policy kept the existing flat directory.
	Skipped bool
	// Reset reports that derived state was wiped and rebuilt.
	Reset bool

	Digests []types.ArchiveDigest
}

// Total returns the number of archives processed in this run.
func (r Result) Total() int {
	return r.Extracted + r.Failed
}

// HasFailures reports whether any archive failed extraction.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Ingestor runs the archive ingestion stage.
type Ingestor struct {
	cfg     types.IngestConfig
	pattern string
	batchRe *regexp.Regexp
	log     zerolog.Logger
}

// New creates an Ingestor. docPattern is the glob the unify stage reads from
// the flat directory; it decides whether an existing flat directory counts
// as populated.
func New(cfg types.IngestConfig, docPattern string, log zerolog.Logger) (*Ingestor, error) {
	re, err := CompileBatchPattern(cfg.BatchCodePattern)
	if err != nil {
		return nil, err
	}
	if docPattern == "" {
		docPattern = "*.json"
	}
	if cfg.Policy == "" {
		cfg.Policy = types.PolicySkipExisting
	}
	return &Ingestor{cfg: cfg, pattern: docPattern, batchRe: re, log: log}, nil
}

// FindArchives lists archives in dir matching glob, sorted by name.
// An unreadable directory is an error; an empty match is not.
func FindArchives(dir, glob string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("matching %q in %s: %w", glob, dir, err)
	}
	archives := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			archives = append(archives, m)
		}
	}
	return archives, nil
}

// Ingest applies the configured policy. When extraction runs, every archive
// is extracted into its own subdirectory of ExtractDir and its JSON files
// are flattened into FlatDir. A corrupt archive is logged and counted; any
// filesystem failure on the shared directories aborts the run.
func (in *Ingestor) Ingest(ctx context.Context) (Result, error) {
	res := Result{Policy: in.cfg.Policy}

	archives, err := FindArchives(in.cfg.SourceDir, in.cfg.ArchiveGlob)
	if err != nil {
		return res, err
	}
	if len(archives) == 0 {
		return res, fmt.Errorf("%w in %s matching %q", ErrNoArchives, in.cfg.SourceDir, in.cfg.ArchiveGlob)
	}
	res.Archives = len(archives)

	res.Digests = make([]types.ArchiveDigest, len(archives))
	for i, a := range archives {
		d, err := digest(a)
		if err != nil {
			return res, fmt.Errorf("hashing %s: %w", filepath.Base(a), err)
		}
		d.BatchCode = BatchCode(d.Name, in.batchRe)
		res.Digests[i] = d
	}

	skip, reason, err := in.canSkip(archives)
	if err != nil {
		return res, err
	}
	if skip {
		res.Skipped = true
		in.log.Info().
			Str("policy", string(in.cfg.Policy)).
			Str("reason", reason).
			Int("archives", len(archives)).
			Msg("skipping extraction")
		return res, nil
	}

	if err := markPending(in.cfg.StateDir); err != nil {
		return res, err
	}
	resetTargets := []string{in.cfg.ExtractDir, in.cfg.FlatDir}
	if in.cfg.Policy == types.PolicyCompareReset {
		resetTargets = append(resetTargets, in.retainedPath())
	}
	if err := ResetDirs(resetTargets...); err != nil {
		return res, fmt.Errorf("resetting derived state: %w", err)
	}
	res.Reset = true
	in.log.Info().Str("policy", string(in.cfg.Policy)).Int("archives", len(archives)).Msg("extracting archives")

	for i, archive := range archives {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d := &res.Digests[i]
		dir := filepath.Join(in.cfg.ExtractDir, d.Name)

		if err := ExtractArchive(archive, dir); err != nil {
			in.log.Warn().Err(err).Str("archive", d.Name).Msg("skipping corrupt archive")
			_ = os.RemoveAll(dir)
			d.Failed = true
			res.Failed++
			continue
		}

		copied, overwritten, err := FlattenDocuments(dir, in.cfg.FlatDir, d.BatchCode)
		if err != nil {
			return res, err
		}
		d.Documents = copied
		res.Extracted++
		res.Documents += copied
		res.Overwritten += overwritten
		in.log.Debug().
			Str("archive", d.Name).
			Str("batch", d.BatchCode).
			Str("size", humanize.Bytes(uint64(d.Size))).
			Int("documents", copied).
			Int("overwritten", overwritten).
			Msg("extracted")
	}

	if in.cfg.Policy == types.PolicyCompareReset {
		if err := retain(archives, in.retainedPath()); err != nil {
			return res, err
		}
	}
	if err := clearPending(in.cfg.StateDir); err != nil {
		return res, err
	}

	ev := in.log.Info()
	if res.HasFailures() {
		ev = in.log.Warn()
	}
	ev.Int("extracted", res.Extracted).
		Int("failed", res.Failed).
		Int("documents", res.Documents).
		Int("overwritten", res.Overwritten).
		Msg("ingest summary")
	return res, nil
}

// Reset wipes all derived ingestion state: extraction directory, flat
// directory, and retained archive copies.
func (in *Ingestor) Reset() error {
	if err := markPending(in.cfg.StateDir); err != nil {
		return err
	}
	if err := ResetDirs(in.cfg.ExtractDir, in.cfg.FlatDir, in.retainedPath()); err != nil {
		return err
	}
	return clearPending(in.cfg.StateDir)
}

// canSkip decides whether the current flat directory can be reused.
// Interrupted previous runs and empty flat directories never qualify.
func (in *Ingestor) canSkip(archives []string) (bool, string, error) {
	if in.cfg.Policy == types.PolicyAlwaysReset {
		return false, "", nil
	}
	if isPending(in.cfg.StateDir) {
		in.log.Warn().Msg("previous ingestion did not complete; re-extracting")
		return false, "", nil
	}
	docs, err := CountDocuments(in.cfg.FlatDir, in.pattern)
	if err != nil {
		return false, "", err
	}
	if docs == 0 {
		return false, "", nil
	}

	switch in.cfg.Policy {
	case types.PolicySkipExisting:
		return true, "flat directory already populated", nil
	case types.PolicyCompareReset:
		same, err := matchesRetained(archives, in.retainedPath())
		if err != nil {
			return false, "", err
		}
		if same {
			return true, "archives unchanged", nil
		}
		in.log.Info().Msg("archive set changed; resetting derived state")
		return false, "", nil
	default:
		return false, "", fmt.Errorf("unknown idempotency policy %q", in.cfg.Policy)
	}
}

func (in *Ingestor) retainedPath() string {
	return filepath.Join(in.cfg.StateDir, retainedDir)
}
