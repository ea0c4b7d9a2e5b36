package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// PlainTextImporter handles .txt and any unrecognized text format.
type PlainTextImporter struct{}

// CanHandle returns true for plain text extensions. Also acts as fallback.
func (t *PlainTextImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ""
}

// Import reads a plain text file as one speech. All metadata comes from
// the import options and the file path.
func (t *PlainTextImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	return []Document{{
		Text:       strings.ReplaceAll(content, "\r\n", "\n"),
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SourceFile: absPath,
	}}, nil
}
