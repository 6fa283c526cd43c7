// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"fmt"
	"strings"

	"github.com/pdiddy/newswrangle/pkg/types"
)

// Column is one projected output column: its name, the field path it reads
// and the record field it fills.
type Column struct {
	Name  string
	Path  []string
	Field func(*types.ArticleRecord) **string
}

// Columns is the fixed projection, in output order.
var Columns = []Column{
	col("UUID", "$.uuid", func(r *types.ArticleRecord) **string { return &r.UUID }),
	col("URL", "$.url", func(r *types.ArticleRecord) **string { return &r.URL }),
	col("Author", "$.author", func(r *types.ArticleRecord) **string { return &r.Author }),
	col("Title", "$.title", func(r *types.ArticleRecord) **string { return &r.Title }),
	col("Published", "$.published", func(r *types.ArticleRecord) **string { return &r.Published }),
	col("Language", "$.language", func(r *types.ArticleRecord) **string { return &r.Language }),
	col("Rating", "$.rating", func(r *types.ArticleRecord) **string { return &r.Rating }),
	col("ThreadTitle", "$.thread.title", func(r *types.ArticleRecord) **string { return &r.ThreadTitle }),
	col("ThreadURL", "$.thread.url", func(r *types.ArticleRecord) **string { return &r.ThreadURL }),
	col("SiteFull", "$.thread.site_full", func(r *types.ArticleRecord) **string { return &r.SiteFull }),
	col("Site", "$.thread.site", func(r *types.ArticleRecord) **string { return &r.Site }),
	col("SiteSection", "$.thread.site_section", func(r *types.ArticleRecord) **string { return &r.SiteSection }),
	col("SectionTitle", "$.thread.section_title", func(r *types.ArticleRecord) **string { return &r.SectionTitle }),
	col("ThreadPublished", "$.thread.published", func(r *types.ArticleRecord) **string { return &r.ThreadPublished }),
	col("Country", "$.thread.country", func(r *types.ArticleRecord) **string { return &r.Country }),
	col("DomainRank", "$.thread.domain_rank", func(r *types.ArticleRecord) **string { return &r.DomainRank }),
	col("RepliesCount", "$.thread.replies_count", func(r *types.ArticleRecord) **string { return &r.RepliesCount }),
	col("Participants", "$.thread.participants_count", func(r *types.ArticleRecord) **string { return &r.Participants }),
	col("SiteType", "$.thread.site_type", func(r *types.ArticleRecord) **string { return &r.SiteType }),
}

// ColumnNames returns the projected column names in output order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

func col(name, expr string, field func(*types.ArticleRecord) **string) Column {
	path, err := ParsePath(expr)
	if err != nil {
		panic(err)
	}
	return Column{Name: name, Path: path, Field: field}
}

// ParsePath splits a dotted field path such as "$.thread.domain_rank" into
// its keys. The leading "$." is optional; empty segments are rejected.
func ParsePath(expr string) ([]string, error) {
	rest := strings.TrimPrefix(strings.TrimPrefix(expr, "$"), ".")
	if rest == "" {
		return nil, fmt.Errorf("empty field path %q", expr)
	}
	keys := strings.Split(rest, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("empty segment in field path %q", expr)
		}
	}
	return keys, nil
}
