// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ArticleRecord is one unified row projected out of a flattened JSON
// document. Every projected field is optional: nil means the path was
// absent, null, or unreachable in the source document.
type ArticleRecord struct {
	UUID      *string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	URL       *string `json:"url,omitempty" yaml:"url,omitempty"`
	Author    *string `json:"author,omitempty" yaml:"author,omitempty"`
	Title     *string `json:"title,omitempty" yaml:"title,omitempty"`
	Published *string `json:"published,omitempty" yaml:"published,omitempty"`
	Language  *string `json:"language,omitempty" yaml:"language,omitempty"`
	Rating    *string `json:"rating,omitempty" yaml:"rating,omitempty"`

	// Thread-scoped fields.
	ThreadTitle     *string `json:"thread_title,omitempty" yaml:"thread_title,omitempty"`
	ThreadURL       *string `json:"thread_url,omitempty" yaml:"thread_url,omitempty"`
	SiteFull        *string `json:"site_full,omitempty" yaml:"site_full,omitempty"`
	Site            *string `json:"site,omitempty" yaml:"site,omitempty"`
	SiteSection     *string `json:"site_section,omitempty" yaml:"site_section,omitempty"`
	SectionTitle    *string `json:"section_title,omitempty" yaml:"section_title,omitempty"`
	ThreadPublished *string `json:"thread_published,omitempty" yaml:"thread_published,omitempty"`
	Country         *string `json:"country,omitempty" yaml:"country,omitempty"`
	DomainRank      *string `json:"domain_rank,omitempty" yaml:"domain_rank,omitempty"`
	RepliesCount    *string `json:"replies_count,omitempty" yaml:"replies_count,omitempty"`
	Participants    *string `json:"participants,omitempty" yaml:"participants,omitempty"`
	SiteType        *string `json:"site_type,omitempty" yaml:"site_type,omitempty"`

	// SourceFile is the flattened filename the row came from.
	SourceFile string `json:"source_file" yaml:"source_file"`
}

// DerivedArticleRecord is an ArticleRecord with the analytic features
// computed by the derive stage. Pointer fields are nil when their input
// (usually Published) is missing.
type DerivedArticleRecord struct {
	ArticleRecord

	// PublishedAt is Published parsed and normalized to UTC.
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// ParticipantsNum and RepliesNum are the numeric coercions of the raw
	// thread counters.
	ParticipantsNum *float64 `json:"participants_num,omitempty" yaml:"participants_num,omitempty"`
	RepliesNum      *float64 `json:"replies_num,omitempty" yaml:"replies_num,omitempty"`

	PublishedYear      *int       `json:"published_year,omitempty" yaml:"published_year,omitempty"`
	PublishedMonth     *int       `json:"published_month,omitempty" yaml:"published_month,omitempty"`
	PublishedDay       *int       `json:"published_day,omitempty" yaml:"published_day,omitempty"`
	PublishedDate      *time.Time `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	PublishedDayOfWeek *string    `json:"published_day_of_week,omitempty" yaml:"published_day_of_week,omitempty"`
	PublishedWeek      *int       `json:"published_week,omitempty" yaml:"published_week,omitempty"`
	PublishedQuarter   *int       `json:"published_quarter,omitempty" yaml:"published_quarter,omitempty"`

	EngagementScore    float64 `json:"engagement_score" yaml:"engagement_score"`
	HighEngagement     bool    `json:"high_engagement" yaml:"high_engagement"`
	DaysSincePublished *int    `json:"days_since_published,omitempty" yaml:"days_since_published,omitempty"`
	IsWeekend          bool    `json:"is_weekend" yaml:"is_weekend"`
	IsEnglish          bool    `json:"is_english" yaml:"is_english"`
}

// ArchiveDigest identifies one source archive by content. It is recorded in
// the run ledger and never used to deduplicate individual records.
type ArchiveDigest struct {
	Name      string `json:"name" yaml:"name"`
	BatchCode string `json:"batch_code" yaml:"batch_code"`
	SHA256    string `json:"sha256" yaml:"sha256"`
	Size      int64  `json:"size" yaml:"size"`
	Documents int    `json:"documents" yaml:"documents"`
	Failed    bool   `json:"failed" yaml:"failed"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
