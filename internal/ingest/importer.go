package ingest

import (
	"context"

	"github.com/politicsradar/polr/internal/pipeline"
)

// Document is one parsed speech. Empty fields are filled from
// ImportOptions before the speech is stored.
type Document struct {
	TermID    string `json:"pm_term_id" yaml:"pm_term_id"`
	TermName  string `json:"term_name" yaml:"term_name"`
	TermStart string `json:"term_start_date" yaml:"term_start_date"`
	TermEnd   string `json:"term_end_date" yaml:"term_end_date"`
	Name      string `json:"pm_name" yaml:"pm_name"`
	DT        string `json:"dt" yaml:"dt"`
	Title     string `json:"title" yaml:"title"`
	Context   string `json:"context" yaml:"context"`
	Text      string `json:"raw_text" yaml:"raw_text"`
	SourceURL string `json:"source_url" yaml:"source_url"`

	SourceFile string `json:"-" yaml:"-"` // absolute path of the file it came from
}

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file into speech documents.
	Import(ctx context.Context, path string) ([]Document, error)
}

// SpeechSink stores one speech with its chunks and metrics.
type SpeechSink interface {
	IngestSpeech(ctx context.Context, in pipeline.SpeechInput, opts pipeline.IngestOptions) (*pipeline.IngestResult, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned    int
	FilesImported   int
	FilesSkipped    int
	SpeechesNew     int
	SpeechesSkipped int // source already stored
	Chunks          int
	Metrics         int
	Errors          []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.SpeechesNew += other.SpeechesNew
	r.SpeechesSkipped += other.SpeechesSkipped
	r.Chunks += other.Chunks
	r.Metrics += other.Metrics
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string
	Message string
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 10MB
	MaxLength   int   // fragment length bound, 0 means the segmenter default
	SingleChunk bool  // store each speech as one whole-speech chunk

	// Defaults for documents that do not carry their own values.
	TermID    string
	TermName  string
	TermStart string
	TermEnd   string
	Name      string
	DT        string
	Context   string

	ProgressFn func(current, total int, file string)
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultHTMLContext is the context recorded for saved statement pages.
const DefaultHTMLContext = "演説・記者会見"

func (o ImportOptions) maxFileSize() int64 {
	if o.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return o.MaxFileSize
}
