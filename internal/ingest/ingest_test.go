// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/newswrangle/internal/logger"
	"github.com/pdiddy/newswrangle/pkg/types"
)

// --- fixtures ---

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func testConfig(t *testing.T, policy types.IdempotencyPolicy) types.IngestConfig {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(src, 0o755))
	return types.IngestConfig{
		SourceDir:        src,
		ArchiveGlob:      "*.zip",
		ExtractDir:       filepath.Join(root, "work", "unzipped_all"),
		FlatDir:          filepath.Join(root, "work", "unzipped_flat"),
		StateDir:         filepath.Join(root, "work", "state"),
		BatchCodePattern: `\d{8,}`,
		Policy:           policy,
	}
}

func newIngestor(t *testing.T, cfg types.IngestConfig) *Ingestor {
	t.Helper()
	in, err := New(cfg, "*.json", logger.Nop())
	require.NoError(t, err)
	return in
}

func flatNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// --- batch code ---

func TestBatchCode(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"news_20231105.zip", "20231105"},
		{"dump-2023110512-part1.zip", "2023110512"},
		{"a1234567b.zip", UnknownBatch},
		{"12345678_then_87654321.zip", "12345678"},
		{"no_digits.zip", UnknownBatch},
		{"/some/dir/20240101/plain.zip", UnknownBatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BatchCode(tt.name, DefaultBatchPattern))
		})
	}
}

func TestBatchCodeCaptureGroup(t *testing.T) {
	re, err := CompileBatchPattern(`batch-(\d+)`)
	require.NoError(t, err)
	assert.Equal(t, "42", BatchCode("batch-42.zip", re))
	assert.Equal(t, UnknownBatch, BatchCode("other.zip", re))

	_, err = CompileBatchPattern(`(`)
	assert.Error(t, err)
}

func TestFlatName(t *testing.T) {
	assert.Equal(t, "news_0001_20231105.json", FlatName("news_0001.json", "20231105"))
	assert.Equal(t, "ARTICLE_unknown.json", FlatName("dir/ARTICLE.JSON", UnknownBatch))
}

// --- extraction ---

func TestExtractArchiveRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil_20240101.zip")
	writeZip(t, archive, map[string]string{"../outside.json": `{}`})

	err := ExtractArchive(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "outside.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSafeJoin(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.json", false},
		{"nested/dir/a.json", false},
		{"nested/../a.json", false},
		{"../a.json", true},
		{"nested/../../a.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safeJoin(dest, tt.name)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsafeEntry))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExtractArchiveTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "news_20240101.tar.gz")
	writeTarGz(t, archive, map[string]string{"nested/a.json": `{"uuid":"a"}`})

	out := filepath.Join(dir, "out")
	require.NoError(t, ExtractArchive(archive, out))
	data, err := os.ReadFile(filepath.Join(out, "nested", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"uuid":"a"}`, string(data))
}

func TestExtractArchiveUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.rar")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	err := ExtractArchive(path, filepath.Join(dir, "out"))
	assert.True(t, errors.Is(err, ErrUnsupportedArchive))
}

// --- ingestion ---

func TestIngestNoArchives(t *testing.T) {
	cfg := testConfig(t, types.PolicySkipExisting)
	_, err := newIngestor(t, cfg).Ingest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoArchives))
	assert.Contains(t, err.Error(), cfg.SourceDir)
}

func TestIngestMissingSourceDir(t *testing.T) {
	cfg := testConfig(t, types.PolicySkipExisting)
	cfg.SourceDir = filepath.Join(cfg.SourceDir, "missing")
	_, err := newIngestor(t, cfg).Ingest(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoArchives))
}

func TestIngestFlattensWithBatchCodes(t *testing.T) {
	cfg := testConfig(t, types.PolicyAlwaysReset)
	writeZip(t, filepath.Join(cfg.SourceDir, "news_20231105.zip"), map[string]string{
		"a.json":          `{"uuid":"a"}`,
		"deep/dir/B.JSON": `{"uuid":"b"}`,
		"readme.txt":      "ignored",
	})
	writeZip(t, filepath.Join(cfg.SourceDir, "misc.zip"), map[string]string{
		"c.json": `{"uuid":"c"}`,
	})

	res, err := newIngestor(t, cfg).Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Archives)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 3, res.Documents)
	assert.True(t, res.Reset)
	assert.False(t, res.Skipped)
	assert.ElementsMatch(t,
		[]string{"a_20231105.json", "B_20231105.json", "c_unknown.json"},
		flatNames(t, cfg.FlatDir))

	// Each archive gets its own extraction directory.
	assert.DirExists(t, filepath.Join(cfg.ExtractDir, "news_20231105.zip"))
	assert.DirExists(t, filepath.Join(cfg.ExtractDir, "misc.zip"))

	require.Len(t, res.Digests, 2)
	for _, d := range res.Digests {
		assert.Len(t, d.SHA256, 64)
		assert.Positive(t, d.Size)
	}
}

func TestIngestCollisionLastCopyWins(t *testing.T) {
	cfg := testConfig(t, types.PolicyAlwaysReset)
	// Both archives carry batch 20240101 and a file named article.json.
	writeZip(t, filepath.Join(cfg.SourceDir, "a_20240101.zip"), map[string]string{"article.json": `{"uuid":"first"}`})
	writeZip(t, filepath.Join(cfg.SourceDir, "b_20240101.zip"), map[string]string{"article.json": `{"uuid":"second"}`})

	res, err := newIngestor(t, cfg).Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, res.Overwritten)
	assert.Equal(t, []string{"article_20240101.json"}, flatNames(t, cfg.FlatDir))

	data, err := os.ReadFile(filepath.Join(cfg.FlatDir, "article_20240101.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"uuid":"second"}`, string(data))
}

func TestIngestSkipsCorruptArchive(t *testing.T) {
	cfg := testConfig(t, types.PolicyAlwaysReset)
	writeZip(t, filepath.Join(cfg.SourceDir, "good_20240101.zip"), map[string]string{"a.json": `{}`})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "bad_20240102.zip"), []byte("not a zip"), 0o644))

	res, err := newIngestor(t, cfg).Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Extracted)
	assert.Equal(t, 1, res.Failed)
	assert.True(t, res.HasFailures())
	assert.Equal(t, 2, res.Total())
	assert.Equal(t, []string{"a_20240101.json"}, flatNames(t, cfg.FlatDir))
	assert.NoDirExists(t, filepath.Join(cfg.ExtractDir, "bad_20240102.zip"))
}

func TestIngestSkipExisting(t *testing.T) {
	cfg := testConfig(t, types.PolicySkipExisting)
	writeZip(t, filepath.Join(cfg.SourceDir, "n_20240101.zip"), map[string]string{"a.json": `{"v":1}`})

	in := newIngestor(t, cfg)
	first, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Reset)

	// A changed archive does not matter under skip-existing.
	writeZip(t, filepath.Join(cfg.SourceDir, "n_20240101.zip"), map[string]string{"a.json": `{"v":2}`})
	second, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.False(t, second.Reset)

	data, err := os.ReadFile(filepath.Join(cfg.FlatDir, "a_20240101.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))
}

func TestIngestCompareReset(t *testing.T) {
	cfg := testConfig(t, types.PolicyCompareReset)
	archive := filepath.Join(cfg.SourceDir, "n_20240101.zip")
	writeZip(t, archive, map[string]string{"a.json": `{"v":1}`})

	in := newIngestor(t, cfg)
	first, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Reset)
	assert.FileExists(t, filepath.Join(cfg.StateDir, retainedDir, "n_20240101.zip"))

	unchanged, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, unchanged.Skipped)

	// Changing one archive rebuilds everything.
	writeZip(t, archive, map[string]string{"b.json": `{"v":2}`})
	changed, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, changed.Reset)
	assert.Equal(t, []string{"b_20240101.json"}, flatNames(t, cfg.FlatDir))

	// Adding an archive also counts as a change.
	writeZip(t, filepath.Join(cfg.SourceDir, "m_20240202.zip"), map[string]string{"c.json": `{}`})
	added, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, added.Reset)
	assert.ElementsMatch(t, []string{"b_20240101.json", "c_20240202.json"}, flatNames(t, cfg.FlatDir))
}

func TestIngestInterruptedRunIsRedone(t *testing.T) {
	cfg := testConfig(t, types.PolicySkipExisting)
	writeZip(t, filepath.Join(cfg.SourceDir, "n_20240101.zip"), map[string]string{"a.json": `{}`, "b.json": `{}`})

	in := newIngestor(t, cfg)
	_, err := in.Ingest(context.Background())
	require.NoError(t, err)

	// Simulate a crash mid-extraction: marker left behind, one file lost.
	require.NoError(t, markPending(cfg.StateDir))
	require.NoError(t, os.Remove(filepath.Join(cfg.FlatDir, "b_20240101.json")))

	res, err := in.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.ElementsMatch(t, []string{"a_20240101.json", "b_20240101.json"}, flatNames(t, cfg.FlatDir))
	assert.False(t, isPending(cfg.StateDir))
}

func TestIngestIdempotentOutput(t *testing.T) {
	for _, policy := range types.Policies {
		t.Run(string(policy), func(t *testing.T) {
			cfg := testConfig(t, policy)
			writeZip(t, filepath.Join(cfg.SourceDir, "n_20240101.zip"), map[string]string{"a.json": `{"v":1}`, "b.json": `{"v":2}`})
			in := newIngestor(t, cfg)

			_, err := in.Ingest(context.Background())
			require.NoError(t, err)
			before := snapshot(t, cfg.FlatDir)

			_, err = in.Ingest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, before, snapshot(t, cfg.FlatDir))
		})
	}
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, name := range flatNames(t, dir) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		out[name] = string(data)
	}
	return out
}

// --- reset ---

func TestResetDirs(t *testing.T) {
	root := t.TempDir()
	populated := filepath.Join(root, "populated")
	require.NoError(t, os.MkdirAll(filepath.Join(populated, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(populated, "sub", "x.json"), []byte("{}"), 0o644))
	missing := filepath.Join(root, "missing")

	require.NoError(t, ResetDirs(populated, missing, ""))
	assert.Empty(t, flatNames(t, populated))
	assert.DirExists(t, missing)

	// Running again on already-reset state is a no-op.
	require.NoError(t, ResetDirs(populated, missing))
	assert.Empty(t, flatNames(t, populated))
}

func TestResetDirsRefusesRoots(t *testing.T) {
	for _, d := range []string{".", "/", "./"} {
		err := ResetDirs(d)
		assert.True(t, errors.Is(err, ErrUnsafeReset), d)
	}
}

func TestIngestorReset(t *testing.T) {
	cfg := testConfig(t, types.PolicyCompareReset)
	writeZip(t, filepath.Join(cfg.SourceDir, "n_20240101.zip"), map[string]string{"a.json": `{}`})
	in := newIngestor(t, cfg)
	_, err := in.Ingest(context.Background())
	require.NoError(t, err)

	require.NoError(t, in.Reset())
	assert.Empty(t, flatNames(t, cfg.FlatDir))
	assert.Empty(t, flatNames(t, cfg.ExtractDir))
	assert.Empty(t, flatNames(t, filepath.Join(cfg.StateDir, retainedDir)))
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	big := bytes.Repeat([]byte("0123456789"), 20000)
	require.NoError(t, os.WriteFile(a, big, 0o644))
	require.NoError(t, os.WriteFile(b, big, 0o644))
	changed := append([]byte(nil), big...)
	changed[len(changed)-1] = 'x'
	require.NoError(t, os.WriteFile(c, changed, 0o644))

	same, err := sameContent(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameContent(a, c)
	require.NoError(t, err)
	assert.False(t, same)

	same, err = sameContent(a, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, same)
}
