// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes the derived article table as one delimited file and
// an optional YAML run manifest beside it.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/newswrangle/internal/unify"
	"github.com/pdiddy/newswrangle/pkg/types"
)

// TimestampLayout renders instants, and dates as their UTC midnight, with an
// explicit UTC offset.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// DerivedColumns lists the computed columns in output order.
var DerivedColumns = []string{
	"Published_Year",
	"Published_Month",
	"Published_Day",
	"Published_Date",
	"Published_DayOfWeek",
	"Published_Week",
	"Published_Quarter",
	"Engagement_Score",
	"High_Engagement",
	"Days_Since_Published",
	"Is_Weekend",
	"Is_English",
}

// Header returns the full column list: projected columns, SourceFile, then
// the derived columns.
func Header() []string {
	h := unify.ColumnNames()
	h = append(h, "SourceFile")
	return append(h, DerivedColumns...)
}

// WriteCSV writes rows to path with the given delimiter. Output goes to a
// temporary file in the same directory which then replaces path, so a failed
// write never leaves a truncated file behind.
func WriteCSV(path string, rows []types.DerivedArticleRecord, delimiter rune) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if delimiter != 0 {
			cw.Comma = delimiter
		}
		if err := cw.Write(Header()); err != nil {
			return err
		}
		for i := range rows {
			if err := cw.Write(Record(&rows[i])); err != nil {
				return fmt.Errorf("writing row %d: %w", i+1, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Record renders one row in Header order. Missing values are empty.
func Record(r *types.DerivedArticleRecord) []string {
	out := make([]string, 0, len(unify.Columns)+1+len(DerivedColumns))
	for _, c := range unify.Columns {
		if c.Name == "Published" {
			out = append(out, timestamp(r.PublishedAt))
			continue
		}
		out = append(out, str(*c.Field(&r.ArticleRecord)))
	}
	out = append(out, r.SourceFile)

	return append(out,
		integer(r.PublishedYear),
		integer(r.PublishedMonth),
		integer(r.PublishedDay),
		timestamp(r.PublishedDate),
		str(r.PublishedDayOfWeek),
		integer(r.PublishedWeek),
		integer(r.PublishedQuarter),
		decimal(r.EngagementScore),
		boolean(r.HighEngagement),
		integer(r.DaysSincePublished),
		boolean(r.IsWeekend),
		boolean(r.IsEnglish),
	)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func integer(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// decimal keeps at least one fractional digit so whole scores read as 8.0.
func decimal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func boolean(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
