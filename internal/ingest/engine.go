package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/politicsradar/polr/internal/logging"
	"github.com/politicsradar/polr/internal/pipeline"
)

// Engine orchestrates importing speech files into a SpeechSink.
type Engine struct {
	sink      SpeechSink
	importers []Importer
	log       *logging.Logger
}

// NewEngine creates an import engine writing to sink. A nil logger
// discards output.
func NewEngine(sink SpeechSink, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{
		sink: sink,
		importers: []Importer{
			&MarkdownImporter{},
			&JSONImporter{},
			&YAMLImporter{},
			&CSVImporter{},
			&HTMLImporter{},
			&PlainTextImporter{}, // fallback, must be last
		},
		log: log.Component("ingest"),
	}
}

// ImportFile imports a single file, or a directory when path is one.
// Symlinked directories are refused.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("resolving symlink %s: %w", path, err)
		}
		if target.IsDir() {
			return nil, fmt.Errorf("refusing to import symlinked directory %s", path)
		}
		info = target
	}
	if info.IsDir() {
		return e.ImportDir(ctx, path, opts)
	}

	result := &ImportResult{FilesScanned: 1}
	if err := e.importOne(ctx, path, info.Size(), opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ImportDir imports every supported file under dir. Hidden files and
// directories are skipped; subdirectories are only entered when
// opts.Recursive is set. Unreadable entries and per-file failures are
// recorded in the result instead of aborting the walk.
func (e *Engine) ImportDir(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	var files []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Stat(path); err == nil && target.IsDir() {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	total := len(files)
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, total, path)
		}
		result.FilesScanned++

		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
			continue
		}
		if err := e.importOne(ctx, path, info.Size(), opts, result); err != nil {
			result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
		}
	}
	return result, nil
}

// importOne parses one file and hands its speeches to the sink. Parse
// failures are returned; per-speech failures are recorded in result.
func (e *Engine) importOne(ctx context.Context, path string, size int64, opts ImportOptions, result *ImportResult) error {
	log := e.log.WithField("file", path)

	if size > opts.maxFileSize() {
		result.FilesSkipped++
		result.Errors = append(result.Errors, ImportError{
			File:    path,
			Message: fmt.Sprintf("file too large (%d bytes, max %d)", size, opts.maxFileSize()),
		})
		return nil
	}
	if isBinaryFile(path) {
		result.FilesSkipped++
		log.Debug("binary file, skipping")
		return nil
	}

	imp := e.detectImporter(path)
	if imp == nil {
		imp = e.sniffFormat(path)
	}
	if imp == nil {
		result.FilesSkipped++
		log.Debug("unsupported format, skipping")
		return nil
	}

	docs, err := imp.Import(ctx, path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		result.FilesSkipped++
		return nil
	}

	stored := 0
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		in := speechInput(doc, opts)
		r, err := e.sink.IngestSpeech(ctx, in, pipeline.IngestOptions{
			MaxLength:   opts.MaxLength,
			SingleChunk: opts.SingleChunk,
			DryRun:      opts.DryRun,
		})
		if err != nil {
			log.WithError(err).Warn("speech not imported")
			result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
			continue
		}
		stored++
		if r.Skipped {
			result.SpeechesSkipped++
			continue
		}
		result.SpeechesNew++
		result.Chunks += r.Chunks
		result.Metrics += r.Metrics
	}

	if stored == 0 {
		result.FilesSkipped++
		return nil
	}
	result.FilesImported++
	log.WithField("speeches", stored).Debug("file imported")
	return nil
}

// speechInput fills a document's missing fields from the import options.
// The source locator falls back to the file path, and the date to one
// inferred from the locator.
func speechInput(doc Document, opts ImportOptions) pipeline.SpeechInput {
	source := doc.SourceURL
	if source == "" {
		source = doc.SourceFile
	}

	dt := doc.DT
	if dt == "" {
		dt = DateFromLocator(doc.SourceURL)
	}
	if dt == "" {
		dt = DateFromLocator(doc.SourceFile)
	}

	return pipeline.SpeechInput{
		TermID:    firstNonEmpty(doc.TermID, opts.TermID),
		TermName:  firstNonEmpty(doc.TermName, opts.TermName),
		TermStart: firstNonEmpty(doc.TermStart, opts.TermStart),
		TermEnd:   firstNonEmpty(doc.TermEnd, opts.TermEnd),
		Name:      firstNonEmpty(doc.Name, opts.Name),
		DT:        firstNonEmpty(dt, opts.DT),
		Title:     doc.Title,
		Context:   firstNonEmpty(doc.Context, opts.Context),
		Text:      doc.Text,
		SourceURL: source,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// detectImporter picks an importer by file extension.
func (e *Engine) detectImporter(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// sniffFormat looks at the first bytes of a file whose extension is not
// recognized.
func (e *Engine) sniffFormat(path string) Importer {
	head, err := readHead(path, 512)
	if err != nil {
		return nil
	}
	trimmed := bytes.TrimSpace(head)
	if len(trimmed) == 0 {
		return nil
	}

	lower := bytes.ToLower(trimmed)
	switch {
	case trimmed[0] == '{' || trimmed[0] == '[':
		return &JSONImporter{}
	case bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")):
		return &HTMLImporter{}
	case bytes.HasPrefix(trimmed, []byte("---")) || bytes.HasPrefix(trimmed, []byte("#")):
		return &MarkdownImporter{}
	}
	return &PlainTextImporter{}
}

// isBinaryFile reports whether the first 8000 bytes contain a NUL byte.
func isBinaryFile(path string) bool {
	head, err := readHead(path, 8000)
	if err != nil {
		return false
	}
	return bytes.IndexByte(head, 0) >= 0
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// FormatImportResult renders an import summary for the terminal.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files: %d scanned, %d imported, %d skipped\n", r.FilesScanned, r.FilesImported, r.FilesSkipped)
	fmt.Fprintf(&b, "Speeches: %d new, %d already stored\n", r.SpeechesNew, r.SpeechesSkipped)
	fmt.Fprintf(&b, "Chunks: %d, metrics: %d\n", r.Chunks, r.Metrics)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
		}
	}
	return b.String()
}
