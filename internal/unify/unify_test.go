// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/newswrangle/internal/logger"
	"github.com/pdiddy/newswrangle/pkg/types"
)

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func str(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		expr    string
		want    []string
		wantErr bool
	}{
		{"$.uuid", []string{"uuid"}, false},
		{"$.thread.domain_rank", []string{"thread", "domain_rank"}, false},
		{"thread.site", []string{"thread", "site"}, false},
		{"$", nil, true},
		{"", nil, true},
		{"$.thread..site", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePath(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumns(t *testing.T) {
	names := ColumnNames()
	require.Len(t, names, 19)
	assert.Equal(t, "UUID", names[0])
	assert.Equal(t, "SiteType", names[18])

	var rec types.ArticleRecord
	for _, c := range Columns {
		v := c.Name
		*c.Field(&rec) = &v
	}
	assert.Equal(t, "Participants", str(rec.Participants))
	assert.Equal(t, "DomainRank", str(rec.DomainRank))
	assert.Equal(t, "ThreadPublished", str(rec.ThreadPublished))
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, body := range []string{``, `[{"uuid":"a"}]`, `"text"`, `42`, `null`, `{"uuid":`, `{"a":1} {"b":2}`} {
		_, err := Decode([]byte(body), 10)
		assert.Error(t, err, body)
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	doc, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, `{"uuid":"a"}`...), 10)
	require.NoError(t, err)
	assert.Equal(t, "a", doc["uuid"])
}

func TestDecodeDepthLimit(t *testing.T) {
	body := `{"a":{"b":{"c":{"d":1}}},"flat":2}`

	doc, err := Decode([]byte(body), 2)
	require.NoError(t, err)
	assert.Equal(t, `{"c":{"d":1}}`, str(Project(doc, []string{"a", "b"})))
	assert.Nil(t, Project(doc, []string{"a", "b", "c"}))
	assert.Equal(t, "2", str(Project(doc, []string{"flat"})))

	doc, err = Decode([]byte(body), 10)
	require.NoError(t, err)
	assert.Equal(t, "1", str(Project(doc, []string{"a", "b", "c", "d"})))
}

func TestProject(t *testing.T) {
	doc, err := Decode([]byte(`{
		"title": "Hello <world> & co",
		"rating": null,
		"thread": {
			"domain_rank": 12345678901234567890,
			"participants_count": 3.50,
			"replies_count": true,
			"site": ["a", "b"],
			"country": {"code": "US"}
		},
		"author": "solo"
	}`), 10)
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"$.title", "Hello <world> & co"},
		{"$.rating", "<nil>"},
		{"$.missing", "<nil>"},
		{"$.thread.domain_rank", "12345678901234567890"},
		{"$.thread.participants_count", "3.50"},
		{"$.thread.replies_count", "true"},
		{"$.thread.site", `["a","b"]`},
		{"$.thread.country", `{"code":"US"}`},
		{"$.thread.missing", "<nil>"},
		{"$.author.name", "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ParsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, str(Project(doc, p)))
		})
	}
}

func TestUnifyFile(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good_20240101.json", `{"uuid":"u1","thread":{"site":"example.com"}}`)
	writeDoc(t, dir, "bad_20240101.json", `{"uuid":`)

	u := New(types.UnifyConfig{}, dir, logger.Nop())

	res := u.UnifyFile(filepath.Join(dir, "good_20240101.json"))
	require.NoError(t, res.Err)
	require.False(t, res.Skipped())
	assert.Equal(t, "good_20240101.json", res.Record.SourceFile)
	assert.Equal(t, "u1", str(res.Record.UUID))
	assert.Equal(t, "example.com", str(res.Record.Site))
	assert.Nil(t, res.Record.Title)

	res = u.UnifyFile(filepath.Join(dir, "bad_20240101.json"))
	assert.True(t, res.Skipped())
	assert.True(t, errors.Is(res.Err, ErrMalformed))

	res = u.UnifyFile(filepath.Join(dir, "gone.json"))
	assert.True(t, res.Skipped())
	assert.False(t, errors.Is(res.Err, ErrMalformed))
}

func TestUnifyToleratesDriftAndMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "c_20240101.json", `{"uuid":"c","thread":{"participants_count":10,"replies_count":5}}`)
	writeDoc(t, dir, "a_20240101.json", `{"uuid":"a"}`)
	writeDoc(t, dir, "b_20240101.json", `not json`)
	writeDoc(t, dir, "d_20240101.json", `[1,2,3]`)
	writeDoc(t, dir, "e_20240101.json", `{"uuid":"e","thread":"flattened"}`)
	writeDoc(t, dir, "notes.txt", `ignored`)

	table, err := New(types.UnifyConfig{Pattern: "*.json", MaxDepth: 10, Workers: 2}, dir, logger.Nop()).
		Unify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Attempted: 5, Emitted: 3, Skipped: 2}, table.Stats)
	assert.Equal(t, table.Stats.Attempted, table.Stats.Emitted+table.Stats.Skipped)

	var sources []string
	for _, r := range table.Rows {
		sources = append(sources, r.SourceFile)
	}
	assert.Equal(t, []string{"a_20240101.json", "c_20240101.json", "e_20240101.json"}, sources)

	assert.Nil(t, table.Rows[0].Participants)
	assert.Equal(t, "10", str(table.Rows[1].Participants))
	assert.Equal(t, "5", str(table.Rows[1].RepliesCount))
	assert.Nil(t, table.Rows[2].Site)
}

func TestUnifyOrderIndependentOfWorkers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range strings.Fields("q w e r t y u i o p a s d f g h j k l z") {
		writeDoc(t, dir, name+"_unknown.json", `{"uuid":"`+name+`"}`)
	}

	single, err := New(types.UnifyConfig{Workers: 1}, dir, logger.Nop()).Unify(context.Background())
	require.NoError(t, err)
	many, err := New(types.UnifyConfig{Workers: 8}, dir, logger.Nop()).Unify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, single.Rows, many.Rows)
	assert.Len(t, single.Rows, 20)
	assert.Equal(t, "a_unknown.json", single.Rows[0].SourceFile)
}

func TestUnifyEmptyAndMissingDir(t *testing.T) {
	dir := t.TempDir()
	table, err := New(types.UnifyConfig{}, dir, logger.Nop()).Unify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Zero(t, table.Stats.Attempted)

	_, err = New(types.UnifyConfig{}, filepath.Join(dir, "missing"), logger.Nop()).Unify(context.Background())
	assert.Error(t, err)
}

func TestUnifyCanceled(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a_unknown.json", `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(types.UnifyConfig{}, dir, logger.Nop()).Unify(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
