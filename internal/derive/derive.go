// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package derive computes calendar, engagement and flag features over a
// unified article table.
package derive

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// Engagement weights.
const (
	ParticipantsWeight = 0.6
	RepliesWeight      = 0.4
)

// DefaultQuantile is the High_Engagement cut used when none is configured.
const DefaultQuantile = 0.75

// Result holds the derived rows and the engagement threshold applied to them.
type Result struct {
	Rows []types.DerivedArticleRecord
	// Threshold is NaN when the table is empty.
	Threshold float64
}

// HighEngagement counts flagged rows.
func (r Result) HighEngagement() int {
	n := 0
	for _, row := range r.Rows {
		if row.HighEngagement {
			n++
		}
	}
	return n
}

// Derive computes every derived feature for rows. now is the single
// reference instant for the whole table. The High_Engagement threshold is
// the q-quantile of Engagement_Score over all rows; a row is flagged when its
// score is strictly greater.
func Derive(rows []types.ArticleRecord, now time.Time, q float64) Result {
	if q <= 0 || q >= 1 {
		q = DefaultQuantile
	}
	now = now.UTC()

	out := make([]types.DerivedArticleRecord, len(rows))
	scores := make([]float64, len(rows))
	for i, r := range rows {
		d := types.DerivedArticleRecord{ArticleRecord: r}
		d.ParticipantsNum = ParseNumber(r.Participants)
		d.RepliesNum = ParseNumber(r.RepliesCount)
		d.EngagementScore = EngagementScore(d.ParticipantsNum, d.RepliesNum)
		d.IsEnglish = IsEnglish(r.Language)

		if pub := ParsePublished(r.Published); pub != nil {
			setCalendar(&d, *pub)
			d.DaysSincePublished = DaysSince(now, pub)
		}
		d.IsWeekend = IsWeekend(d.PublishedDayOfWeek)

		out[i] = d
		scores[i] = d.EngagementScore
	}

	threshold := Quantile(scores, q)
	for i := range out {
		out[i].HighEngagement = out[i].EngagementScore > threshold
	}
	return Result{Rows: out, Threshold: threshold}
}

func setCalendar(d *types.DerivedArticleRecord, t time.Time) {
	y, m, day := t.Date()
	_, week := t.ISOWeek()
	date := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)

	d.PublishedAt = &t
	d.PublishedYear = types.Ptr(y)
	d.PublishedMonth = types.Ptr(int(m))
	d.PublishedDay = types.Ptr(day)
	d.PublishedDate = &date
	d.PublishedDayOfWeek = types.Ptr(t.Weekday().String())
	d.PublishedWeek = types.Ptr(week)
	d.PublishedQuarter = types.Ptr((int(m)-1)/3 + 1)
}

// ParsePublished parses a raw timestamp and normalizes it to UTC. Values
// without a zone are read as UTC. Empty or unparseable input yields nil.
func ParsePublished(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}

// ParseNumber coerces a raw value to a float. Anything that is not a finite
// number yields nil.
func ParseNumber(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// EngagementScore is 0.6 x participants + 0.4 x replies, missing counted as 0.
func EngagementScore(participants, replies *float64) float64 {
	var p, r float64
	if participants != nil {
		p = *participants
	}
	if replies != nil {
		r = *replies
	}
	return ParticipantsWeight*p + RepliesWeight*r
}

// Quantile returns the q-quantile of values using linear interpolation
// between closest ranks. It returns NaN for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)

	pos := float64(len(s)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

// IsEnglish reports whether lang equals "english" under Unicode case folding.
func IsEnglish(lang *string) bool {
	if lang == nil {
		return false
	}
	return cases.Fold().String(*lang) == "english"
}

// IsWeekend reports whether dayName is Saturday or Sunday.
func IsWeekend(dayName *string) bool {
	if dayName == nil {
		return false
	}
	return *dayName == time.Saturday.String() || *dayName == time.Sunday.String()
}

// DaysSince returns the whole days elapsed from published to now, rounded
// down. It is nil when published is.
func DaysSince(now time.Time, published *time.Time) *int {
	if published == nil {
		return nil
	}
	days := int(math.Floor(float64(now.Sub(*published)) / float64(24*time.Hour)))
	return &days
}
