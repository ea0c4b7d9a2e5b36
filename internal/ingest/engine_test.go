package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/politicsradar/polr/internal/phase"
	"github.com/politicsradar/polr/internal/pipeline"
	"github.com/politicsradar/polr/internal/store"
)

const speechText = `物価高への対策として、賃上げを強力に後押ししてまいります。

（記者）今後の防衛費について伺います。

地震からの復旧に全力を挙げてまいります。`

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := phase.FixedClock{At: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
	p := pipeline.New(s, pipeline.WithClock(clock), pipeline.WithWorkers(2))
	return NewEngine(p, nil), s
}

func termOptions() ImportOptions {
	return ImportOptions{TermID: "t2025", TermName: "Holder", TermStart: "2025-01-01", TermEnd: "2025-12-31"}
}

func TestEngine_FormatDetection(t *testing.T) {
	e := NewEngine(nil, nil)

	tests := []struct {
		path string
		want Importer
	}{
		{"speech.md", &MarkdownImporter{}},
		{"speech.markdown", &MarkdownImporter{}},
		{"speech.json", &JSONImporter{}},
		{"speech.yaml", &YAMLImporter{}},
		{"speech.yml", &YAMLImporter{}},
		{"speech.csv", &CSVImporter{}},
		{"speech.tsv", &CSVImporter{}},
		{"0702kaiken.html", &HTMLImporter{}},
		{"0702kaiken.HTM", &HTMLImporter{}},
		{"speech.txt", &PlainTextImporter{}},
		{"README", &PlainTextImporter{}},
	}
	for _, tt := range tests {
		imp := e.detectImporter(tt.path)
		require.NotNil(t, imp, tt.path)
		assert.IsType(t, tt.want, imp, tt.path)
	}
	assert.Nil(t, e.detectImporter("speech.dat"))
}

func TestEngine_ContentSniffing(t *testing.T) {
	e := NewEngine(nil, nil)
	dir := t.TempDir()

	tests := []struct {
		content string
		want    Importer
	}{
		{`{"raw_text": "本文"}`, &JSONImporter{}},
		{"  [\n{}]", &JSONImporter{}},
		{"<!DOCTYPE html><html></html>", &HTMLImporter{}},
		{"<HTML><body></body></HTML>", &HTMLImporter{}},
		{"# 所信表明\n\n本文", &MarkdownImporter{}},
		{"---\ntitle: x\n---\n本文", &MarkdownImporter{}},
		{"ただの文章です。", &PlainTextImporter{}},
	}
	for i, tt := range tests {
		path := writeFile(t, dir, filepath.Join("sniff", string(rune('a'+i))+".dat"), tt.content)
		assert.IsType(t, tt.want, e.sniffFormat(path), tt.content)
	}

	assert.Nil(t, e.sniffFormat(writeFile(t, dir, "blank.dat", "  \n")))
}

func TestEngine_ImportFile(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	path := writeFile(t, t.TempDir(), "kaiken.txt", speechText)
	result, err := e.ImportFile(ctx, path, termOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesScanned)
	assert.Equal(t, 1, result.FilesImported)
	assert.Equal(t, 1, result.SpeechesNew)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 3, result.Metrics)
	assert.Empty(t, result.Errors)

	speeches, err := s.ListSpeeches(ctx)
	require.NoError(t, err)
	require.Len(t, speeches, 1)
	assert.Equal(t, "t2025", speeches[0].TermID)
	assert.Equal(t, "Holder", speeches[0].Name)
	assert.Equal(t, "kaiken", speeches[0].Title)
	assert.Equal(t, path, speeches[0].SourceURL, "file path is the source locator")
	assert.Equal(t, "2025-09-01", speeches[0].DT, "no date anywhere falls back to today")

	term, err := s.GetTerm(ctx, "t2025")
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, "2025-12-31", term.EndDate)
}

func TestEngine_ReimportSkipsStoredSource(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "kaiken.txt", speechText)

	_, err := e.ImportFile(ctx, path, termOptions())
	require.NoError(t, err)

	result, err := e.ImportFile(ctx, path, termOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SpeechesNew)
	assert.Equal(t, 1, result.SpeechesSkipped)
	assert.Equal(t, 0, result.Chunks)

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestEngine_DryRun(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	opts := termOptions()
	opts.DryRun = true
	result, err := e.ImportFile(ctx, writeFile(t, t.TempDir(), "kaiken.txt", speechText), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SpeechesNew)
	assert.Equal(t, 3, result.Chunks)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TermCount)
	assert.Zero(t, stats.SpeechCount)
	assert.Zero(t, stats.ChunkCount)
	assert.Zero(t, stats.MetricCount)
}

func TestEngine_SingleChunk(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	opts := termOptions()
	opts.SingleChunk = true
	result, err := e.ImportFile(ctx, writeFile(t, t.TempDir(), "kaiken.txt", speechText), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Chunks)

	speeches, err := s.ListSpeeches(ctx)
	require.NoError(t, err)
	require.Len(t, speeches, 1)
	chunks, err := s.ListChunks(ctx, speeches[0].ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, store.WholeSpeechOrdinal, chunks[0].Ordinal)
}

func TestEngine_DateFromPath(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	path := writeFile(t, t.TempDir(), filepath.Join("2025", "0702kaiken.txt"), speechText)
	_, err := e.ImportFile(ctx, path, termOptions())
	require.NoError(t, err)

	speeches, err := s.ListSpeeches(ctx)
	require.NoError(t, err)
	require.Len(t, speeches, 1)
	assert.Equal(t, "2025-07-02 00:00", speeches[0].DT)

	rows, err := s.ExportRows(ctx, "t2025")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.Equal(t, "2025-07-02", r.Date)
		assert.InDelta(t, 182.0/364.0, r.OriginPhase, 1e-9)
	}
}

func TestEngine_DocumentFieldsWinOverOptions(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	path := writeFile(t, t.TempDir(), "speech.json", `{
		"pm_term_id": "t2024", "term_name": "Other", "term_start_date": "2024-01-01",
		"pm_name": "Other", "dt": "2024-06-01 09:30", "context": "国会演説",
		"raw_text": "防衛力の抜本的強化を進めます。", "source_url": "https://example.jp/2024/0601"
	}`)
	opts := termOptions()
	opts.Context = "記者会見"
	result, err := e.ImportFile(ctx, path, opts)
	require.NoError(t, err)
	require.Equal(t, 1, result.SpeechesNew)

	speeches, err := s.ListSpeeches(ctx)
	require.NoError(t, err)
	require.Len(t, speeches, 1)
	sp := speeches[0]
	assert.Equal(t, "t2024", sp.TermID)
	assert.Equal(t, "2024-06-01 09:30", sp.DT)
	assert.Equal(t, "国会演説", sp.Context)
	assert.Equal(t, "https://example.jp/2024/0601", sp.SourceURL)

	term, err := s.GetTerm(ctx, "t2025")
	require.NoError(t, err)
	assert.Nil(t, term, "option term is not created when the document names its own")
}

func TestEngine_MissingTermRecordedAsError(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	result, err := e.ImportFile(ctx, writeFile(t, t.TempDir(), "kaiken.txt", speechText), ImportOptions{TermID: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesImported)
	assert.Equal(t, 1, result.FilesSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "unknown")

	n, err := s.CountSpeeches(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_MaxFileSize(t *testing.T) {
	e, _ := newTestEngine(t)

	opts := termOptions()
	opts.MaxFileSize = 16
	result, err := e.ImportFile(context.Background(), writeFile(t, t.TempDir(), "kaiken.txt", speechText), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "too large")
}

func TestEngine_ImportDir_NonRecursive(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", speechText)
	writeFile(t, dir, filepath.Join("sub", "b.txt"), "防衛力の抜本的強化を進めます。")

	result, err := e.ImportDir(ctx, dir, termOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesScanned)
	assert.Equal(t, 1, result.FilesImported)
}

func TestEngine_ImportDir_Recursive(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", speechText)
	writeFile(t, dir, filepath.Join("sub", "b.txt"), "防衛力の抜本的強化を進めます。")

	opts := termOptions()
	opts.Recursive = true
	result, err := e.ImportDir(ctx, dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesScanned)
	assert.Equal(t, 2, result.FilesImported)
	assert.Equal(t, 2, result.SpeechesNew)

	n, err := s.CountSpeeches(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestEngine_ImportDir_SkipHidden(t *testing.T) {
	e, _ := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "visible.txt", speechText)
	writeFile(t, dir, ".hidden.txt", "隠しファイルです。")
	writeFile(t, dir, filepath.Join(".cache", "c.txt"), "キャッシュです。")

	opts := termOptions()
	opts.Recursive = true
	result, err := e.ImportDir(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesScanned)
	assert.Equal(t, 1, result.FilesImported)
}

func TestEngine_ImportDir_Progress(t *testing.T) {
	e, _ := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", speechText)
	writeFile(t, dir, "b.md", "# 所信表明\n\n防衛力の抜本的強化を進めます。")

	var seen []int
	opts := termOptions()
	opts.ProgressFn = func(current, total int, file string) {
		assert.Equal(t, 2, total)
		seen = append(seen, current)
	}
	_, err := e.ImportDir(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestEngine_ImportFile_Directory(t *testing.T) {
	e, _ := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", speechText)

	result, err := e.ImportFile(context.Background(), dir, termOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesImported)
}

func TestEngine_ImportFile_SymlinkedDirectoryRejected(t *testing.T) {
	e, _ := newTestEngine(t)

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target")
	require.NoError(t, os.MkdirAll(target, 0o755))
	link := filepath.Join(tmpDir, "dir-link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink not supported in this environment: %v", err)
	}

	_, err := e.ImportFile(context.Background(), link, termOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlinked directory")
}

func TestEngine_ImportDir_ReportsUnreadableSubdirError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	e, _ := newTestEngine(t)

	dir := t.TempDir()
	writeFile(t, dir, "visible.txt", speechText)
	locked := filepath.Join(dir, "locked")
	writeFile(t, locked, "secret.txt", "読めないファイルです。")
	require.NoError(t, os.Chmod(locked, 0o000))
	defer os.Chmod(locked, 0o755)

	opts := termOptions()
	opts.Recursive = true
	result, err := e.ImportDir(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, 1, result.FilesImported)
}

func TestEngine_SkipsBinaryFiles(t *testing.T) {
	e, _ := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "blob.txt")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xFF}, 0o644))

	result, err := e.ImportFile(context.Background(), path, termOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, result.SpeechesNew)
}

func TestIsBinaryFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, isBinaryFile(writeFile(t, dir, "text.txt", "Hello, this is text content.\n")))

	bin := filepath.Join(dir, "binary.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0x00}, 0o644))
	assert.True(t, isBinaryFile(bin))
}

func TestFormatImportResult(t *testing.T) {
	out := FormatImportResult(&ImportResult{
		FilesScanned:    10,
		FilesImported:   8,
		FilesSkipped:    2,
		SpeechesNew:     7,
		SpeechesSkipped: 1,
		Chunks:          42,
		Metrics:         42,
		Errors:          []ImportError{{File: "/in/bad.json", Message: "invalid JSON"}},
	})
	assert.Contains(t, out, "10 scanned, 8 imported, 2 skipped")
	assert.Contains(t, out, "7 new, 1 already stored")
	assert.Contains(t, out, "Chunks: 42")
	assert.Contains(t, out, "/in/bad.json: invalid JSON")
}

func TestImportResultAdd(t *testing.T) {
	total := &ImportResult{FilesScanned: 1, Chunks: 3}
	total.Add(&ImportResult{FilesScanned: 2, Chunks: 4, Errors: []ImportError{{File: "x"}}})
	assert.Equal(t, 3, total.FilesScanned)
	assert.Equal(t, 7, total.Chunks)
	assert.Len(t, total.Errors, 1)
}
