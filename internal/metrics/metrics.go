// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics collects per-run pipeline counters and writes them in the
// Prometheus text format for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newswrangle"

// Metrics holds the collectors for one run. Each run gets its own registry
// so the textfile reflects only the latest run.
type Metrics struct {
	reg *prometheus.Registry

	Archives       *prometheus.CounterVec
	Documents      *prometheus.CounterVec
	Rows           prometheus.Gauge
	HighEngagement prometheus.Gauge
	Threshold      prometheus.Gauge
	StageDuration  *prometheus.HistogramVec
	LastRun        *prometheus.GaugeVec
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Archives: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_total",
			Help:      "Archives seen by ingestion, by outcome.",
		}, []string{"outcome"}),
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Flattened documents read by unification, by outcome.",
		}, []string{"outcome"}),
		Rows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exported_rows",
			Help:      "Rows written to the output file.",
		}),
		HighEngagement: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "high_engagement_rows",
			Help:      "Rows flagged High_Engagement.",
		}),
		Threshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engagement_threshold",
			Help:      "Engagement score quantile used as the High_Engagement cut.",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		LastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished, by status.",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes every collected metric to path. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
