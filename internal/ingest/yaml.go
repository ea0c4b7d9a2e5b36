package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLImporter handles .yaml and .yml files.
type YAMLImporter struct{}

// CanHandle returns true for YAML file extensions.
func (y *YAMLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Import parses a YAML file into speech documents.
// Multi-document YAML (separated by ---) produces one speech per document.
func (y *YAMLImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var docs []Document
	docNum := 0

	for {
		var doc yamlDocument
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		docNum++
		if err != nil {
			return nil, fmt.Errorf("invalid YAML in %s (document %d): %w", path, docNum, err)
		}

		d := doc.Document
		if d.Text == "" {
			d.Text = doc.AltText
		}
		if strings.TrimSpace(d.Text) == "" && d.TermID == "" && d.Title == "" {
			continue
		}
		d.SourceFile = absPath
		docs = append(docs, d)
	}

	return docs, nil
}

type yamlDocument struct {
	Document `yaml:",inline"`
	AltText  string `yaml:"text"`
}
