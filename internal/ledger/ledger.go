// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of pipeline runs and the archives
// each run saw. It stores counters and archive digests only; article rows
// live in the exported file and nowhere else.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Status     string    `json:"status" yaml:"status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Policy     string    `json:"policy" yaml:"policy"`

	Archives          int  `json:"archives" yaml:"archives"`
	Extracted         int  `json:"extracted" yaml:"extracted"`
	Failed            int  `json:"failed" yaml:"failed"`
	Documents         int  `json:"documents" yaml:"documents"`
	ExtractionSkipped bool `json:"extraction_skipped" yaml:"extraction_skipped"`

	Attempted int `json:"attempted" yaml:"attempted"`
	Emitted   int `json:"emitted" yaml:"emitted"`
	Skipped   int `json:"skipped" yaml:"skipped"`

	Threshold      *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	HighEngagement int      `json:"high_engagement" yaml:"high_engagement"`
	Output         string   `json:"output" yaml:"output"`

	Digests []types.ArchiveDigest `json:"archives_seen,omitempty" yaml:"archives_seen,omitempty"`
}

// Ledger wraps the run history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path and ensures the schema
// exists.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			policy TEXT,
			archives INTEGER,
			extracted INTEGER,
			failed INTEGER,
			documents INTEGER,
			extraction_skipped INTEGER,
			attempted INTEGER,
			emitted INTEGER,
			skipped INTEGER,
			threshold REAL,
			high_engagement INTEGER,
			output TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS archives (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			batch_code TEXT,
			sha256 TEXT,
			size INTEGER,
			documents INTEGER,
			failed INTEGER,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_sha256 ON archives(sha256)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores run and its archive digests in one transaction. An empty
// ID is replaced by a new UUID; the stored ID is returned.
func (l *Ledger) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var threshold sql.NullFloat64
	if run.Threshold != nil {
		threshold = sql.NullFloat64{Float64: *run.Threshold, Valid: true}
	}
	query, args, err := sq.Insert("runs").
		Columns("id", "started_at", "finished_at", "status", "error", "policy",
			"archives", "extracted", "failed", "documents", "extraction_skipped",
			"attempted", "emitted", "skipped", "threshold", "high_engagement", "output").
		Values(run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Status, run.Error, run.Policy,
			run.Archives, run.Extracted, run.Failed, run.Documents, run.ExtractionSkipped,
			run.Attempted, run.Emitted, run.Skipped, threshold, run.HighEngagement, run.Output).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if len(run.Digests) > 0 {
		ins := sq.Insert("archives").
			Columns("run_id", "name", "batch_code", "sha256", "size", "documents", "failed")
		for _, d := range run.Digests {
			ins = ins.Values(run.ID, d.Name, d.BatchCode, d.SHA256, d.Size, d.Documents, d.Failed)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return "", fmt.Errorf("building archive insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return "", fmt.Errorf("inserting archives: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// Runs returns up to limit runs, newest first, with their archive digests.
// A limit of zero or less returns every run.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	sel := sq.Select("id", "started_at", "finished_at", "status", "error", "policy",
		"archives", "extracted", "failed", "documents", "extraction_skipped",
		"attempted", "emitted", "skipped", "threshold", "high_engagement", "output").
		From("runs").
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building run query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	byID := make(map[string]int)
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			errText, policy   sql.NullString
			output            sql.NullString
			threshold         sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Status, &errText, &policy,
			&r.Archives, &r.Extracted, &r.Failed, &r.Documents, &r.ExtractionSkipped,
			&r.Attempted, &r.Emitted, &r.Skipped, &threshold, &r.HighEngagement, &output); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.Error = errText.String
		r.Policy = policy.String
		r.Output = output.String
		if threshold.Valid {
			v := threshold.Float64
			r.Threshold = &v
		}
		byID[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	rows.Close()
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	if err := l.attachDigests(ctx, runs, byID, ids); err != nil {
		return nil, err
	}
	return runs, nil
}

func (l *Ledger) attachDigests(ctx context.Context, runs []Run, byID map[string]int, ids []string) error {
	query, args, err := sq.Select("run_id", "name", "batch_code", "sha256", "size", "documents", "failed").
		From("archives").
		Where(sq.Eq{"run_id": ids}).
		OrderBy("run_id", "name").
		ToSql()
	if err != nil {
		return fmt.Errorf("building archive query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying archives: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			runID     string
			d         types.ArchiveDigest
			batch, sh sql.NullString
		)
		if err := rows.Scan(&runID, &d.Name, &batch, &sh, &d.Size, &d.Documents, &d.Failed); err != nil {
			return fmt.Errorf("scanning archive: %w", err)
		}
		d.BatchCode = batch.String
		d.SHA256 = sh.String
		i := byID[runID]
		runs[i].Digests = append(runs[i].Digests, d)
	}
	return rows.Err()
}

// ExportYAML writes up to limit runs, newest first, as a YAML list.
func (l *Ledger) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []Run{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
