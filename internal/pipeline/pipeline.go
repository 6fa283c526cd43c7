// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs ingest, unify, derive and export once, in order,
// against a single reference instant.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/newswrangle/internal/derive"
	"github.com/pdiddy/newswrangle/internal/export"
	"github.com/pdiddy/newswrangle/internal/ingest"
	"github.com/pdiddy/newswrangle/internal/ledger"
	"github.com/pdiddy/newswrangle/internal/logger"
	"github.com/pdiddy/newswrangle/internal/metrics"
	"github.com/pdiddy/newswrangle/internal/unify"
	"github.com/pdiddy/newswrangle/pkg/types"
)

// Deps holds the collaborators of a run. A nil Now defaults to time.Now.
type Deps struct {
	Log zerolog.Logger
	Now func() time.Time
}

// Summary describes a completed run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Ingest ingest.Result
	Unify  unify.Stats

	Rows           int
	Threshold      float64
	HighEngagement int

	Output   string
	Manifest string
}

// Run executes the full pipeline. Resource-level failures in any stage stop
// the run and are returned. When a ledger path is configured the run is
// recorded whether it succeeds or not; when a metrics textfile is configured
// it is rewritten at the end of the run.
func Run(ctx context.Context, cfg types.PipelineConfig, deps Deps) (Summary, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := logger.Named(deps.Log, "pipeline")

	now := deps.Now().UTC()
	s := Summary{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Threshold: math.NaN(),
		Output:    cfg.Export.OutputPath,
	}
	log = log.With().Str("run_id", s.RunID).Logger()

	var led *ledger.Ledger
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return s, fmt.Errorf("opening ledger: %w", err)
		}
		defer l.Close()
		led = l
	}
	m := metrics.New()

	runErr := run(ctx, cfg, deps, now, m, &s)
	s.FinishedAt = deps.Now().UTC()

	observe(m, &s, runErr)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("metrics textfile not written")
		}
	}
	if led != nil {
		if _, err := led.RecordRun(ctx, ledgerRun(&s, runErr)); err != nil {
			log.Warn().Err(err).Msg("run not recorded in ledger")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("run failed")
		return s, runErr
	}
	log.Info().
		Int("rows", s.Rows).
		Int("high_engagement", s.HighEngagement).
		Str("output", s.Output).
		Dur("elapsed", s.FinishedAt.Sub(s.StartedAt)).
		Msg("run complete")
	return s, nil
}

func run(ctx context.Context, cfg types.PipelineConfig, deps Deps, now time.Time, m *metrics.Metrics, s *Summary) error {
	start := time.Now()
	ing, err := ingest.New(cfg.Ingest, cfg.Unify.Pattern, logger.Named(deps.Log, "ingest"))
	if err != nil {
		return err
	}
	s.Ingest, err = ing.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("ingesting archives: %w", err)
	}
	m.ObserveStage("ingest", time.Since(start))

	start = time.Now()
	table, err := unify.New(cfg.Unify, cfg.Ingest.FlatDir, logger.Named(deps.Log, "unify")).Unify(ctx)
	if err != nil {
		return fmt.Errorf("unifying records: %w", err)
	}
	s.Unify = table.Stats
	m.ObserveStage("unify", time.Since(start))

	start = time.Now()
	derived := derive.Derive(table.Rows, now, cfg.Derive.HighEngagementQuantile)
	s.Rows = len(derived.Rows)
	s.Threshold = derived.Threshold
	s.HighEngagement = derived.HighEngagement()
	m.ObserveStage("derive", time.Since(start))
	dlog := logger.Named(deps.Log, "derive")
	dlog.Info().
		Int("rows", s.Rows).
		Float64("quantile", cfg.Derive.HighEngagementQuantile).
		Float64("threshold", s.Threshold).
		Int("high_engagement", s.HighEngagement).
		Msg("derive summary")

	start = time.Now()
	if err := export.WriteCSV(cfg.Export.OutputPath, derived.Rows, cfg.Export.DelimiterRune()); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	if cfg.Export.Manifest {
		s.Manifest = export.ManifestPath(cfg.Export.OutputPath)
		if err := export.WriteManifest(s.Manifest, manifest(cfg, s, deps.Now().UTC())); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
	}
	m.ObserveStage("export", time.Since(start))
	elog := logger.Named(deps.Log, "export")
	elog.Info().
		Str("output", cfg.Export.OutputPath).
		Int("rows", s.Rows).
		Msg("export summary")
	return nil
}

func manifest(cfg types.PipelineConfig, s *Summary, finished time.Time) export.Manifest {
	return export.Manifest{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: finished,
		Output:     s.Output,
		Ingest: export.ManifestIngest{
			Policy:    string(s.Ingest.Policy),
			Archives:  s.Ingest.Archives,
			Extracted: s.Ingest.Extracted,
			Failed:    s.Ingest.Failed,
			Documents: s.Ingest.Documents,
			Skipped:   s.Ingest.Skipped,
		},
		Unify: export.ManifestUnify{
			Attempted: s.Unify.Attempted,
			Emitted:   s.Unify.Emitted,
			Skipped:   s.Unify.Skipped,
		},
		Derive: export.ManifestDerive{
			Quantile:       cfg.Derive.HighEngagementQuantile,
			Threshold:      finite(s.Threshold),
			HighEngagement: s.HighEngagement,
		},
		Columns:  export.Header(),
		Archives: s.Ingest.Digests,
	}
}

func observe(m *metrics.Metrics, s *Summary, runErr error) {
	m.Archives.WithLabelValues("extracted").Add(float64(s.Ingest.Extracted))
	m.Archives.WithLabelValues("failed").Add(float64(s.Ingest.Failed))
	m.Documents.WithLabelValues("emitted").Add(float64(s.Unify.Emitted))
	m.Documents.WithLabelValues("skipped").Add(float64(s.Unify.Skipped))
	m.Rows.Set(float64(s.Rows))
	m.HighEngagement.Set(float64(s.HighEngagement))
	if t := finite(s.Threshold); t != nil {
		m.Threshold.Set(*t)
	}
	m.LastRun.WithLabelValues(status(runErr)).Set(float64(s.FinishedAt.Unix()))
}

func ledgerRun(s *Summary, runErr error) ledger.Run {
	r := ledger.Run{
		ID:                s.RunID,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
		Status:            status(runErr),
		Policy:            string(s.Ingest.Policy),
		Archives:          s.Ingest.Archives,
		Extracted:         s.Ingest.Extracted,
		Failed:            s.Ingest.Failed,
		Documents:         s.Ingest.Documents,
		ExtractionSkipped: s.Ingest.Skipped,
		Attempted:         s.Unify.Attempted,
		Emitted:           s.Unify.Emitted,
		Skipped:           s.Unify.Skipped,
		Threshold:         finite(s.Threshold),
		HighEngagement:    s.HighEngagement,
		Output:            s.Output,
		Digests:           s.Ingest.Digests,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

func status(err error) string {
	if err != nil {
		return ledger.StatusFailed
	}
	return ledger.StatusOK
}

// finite returns nil for NaN and infinities.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
