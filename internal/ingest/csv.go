package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVImporter handles .csv and .tsv files.
type CSVImporter struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Import parses a CSV file into speech documents.
// The first row names the columns (the same keys as JSON documents); each
// following row is one speech.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Auto-detect TSV
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}

	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}

	if len(records) < 2 {
		// Need at least headers + one row
		return nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var docs []Document
	for _, row := range records[1:] {
		d := Document{SourceFile: absPath}
		for i, val := range row {
			if i >= len(headers) {
				break
			}
			setField(&d, headers[i], val)
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		docs = append(docs, d)
	}

	return docs, nil
}

// setField assigns a named metadata value to a document. Unknown keys are
// ignored.
func setField(d *Document, key, val string) {
	val = strings.TrimSpace(val)
	switch key {
	case "pm_term_id", "term_id", "term":
		d.TermID = val
	case "term_name":
		d.TermName = val
	case "term_start_date", "term_start":
		d.TermStart = val
	case "term_end_date", "term_end":
		d.TermEnd = val
	case "pm_name", "name":
		d.Name = val
	case "dt", "datetime", "date":
		d.DT = val
	case "title":
		d.Title = val
	case "context":
		d.Context = val
	case "raw_text", "text", "body":
		d.Text = val
	case "source_url", "url", "source":
		d.SourceURL = val
	}
}
