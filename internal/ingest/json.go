package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONImporter handles .json files.
type JSONImporter struct{}

// CanHandle returns true for JSON file extensions.
func (j *JSONImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json"
}

// Import parses a JSON file into speech documents.
// - Array of objects: each element is one speech.
// - Single object: one speech.
// Unknown keys are ignored. "text" is accepted as an alias of "raw_text".
func (j *JSONImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	case '{':
		raws = []json.RawMessage{data}
	default:
		return nil, fmt.Errorf("invalid JSON in %s: expected an object or an array of objects", path)
	}

	docs := make([]Document, 0, len(raws))
	for i, raw := range raws {
		var doc jsonDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid speech document %d in %s: %w", i, path, err)
		}
		d := doc.Document
		if d.Text == "" {
			d.Text = doc.AltText
		}
		d.SourceFile = absPath
		docs = append(docs, d)
	}
	return docs, nil
}

type jsonDocument struct {
	Document
	AltText string `json:"text"`
}
