package ingest

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MarkdownImporter handles .md and .markdown files.
type MarkdownImporter struct{}

// CanHandle returns true for Markdown file extensions.
func (m *MarkdownImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

var (
	// headerRe matches any markdown header level 1-6.
	headerRe     = regexp.MustCompile(`^(#{1,6})\s+(.+)`)
	dateNameRe   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	emphasisRe   = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	linkInlineRe = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)

// Import reads a Markdown transcript as one speech. Front matter keys set
// the metadata (the same keys as JSON documents); the first h1 becomes the
// title when none is given; a YYYY-MM-DD file name prefix sets the date.
// Header markers, emphasis and inline links are reduced to plain text.
func (m *MarkdownImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	metadata, body := stripFrontMatter(content)
	doc := Document{SourceFile: absPath}
	for k, v := range metadata {
		setField(&doc, strings.ToLower(k), v)
	}

	baseName := filepath.Base(path)
	if doc.DT == "" {
		if match := dateNameRe.FindString(strings.TrimSuffix(baseName, filepath.Ext(baseName))); match != "" {
			doc.DT = match
		}
	}

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if hm := headerRe.FindStringSubmatch(strings.TrimSpace(line)); hm != nil {
			if len(hm[1]) == 1 && doc.Title == "" {
				doc.Title = strings.TrimSpace(hm[2])
				continue
			}
			line = hm[2]
		}
		line = emphasisRe.ReplaceAllString(line, "$1$2")
		line = linkInlineRe.ReplaceAllString(line, "$1")
		lines = append(lines, line)
	}
	doc.Text = NormalizeText(strings.Join(lines, "\n"))
	if doc.Text == "" {
		return nil, nil
	}
	return []Document{doc}, nil
}

// stripFrontMatter removes YAML front matter (--- delimited) from content.
// Returns metadata map and remaining body.
func stripFrontMatter(content string) (map[string]string, string) {
	if !strings.HasPrefix(strings.TrimSpace(content), "---") {
		return nil, content
	}

	trimmed := strings.TrimSpace(content)
	// Find the closing ---
	rest := trimmed[3:] // skip opening ---
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, content
	}

	fmContent := strings.TrimSpace(rest[:idx])
	body := rest[idx+4:] // skip \n---

	// Parse simple key: value pairs from front matter
	metadata := make(map[string]string)
	for _, line := range strings.Split(fmContent, "\n") {
		line = strings.TrimSpace(line)
		if colonIdx := strings.Index(line, ":"); colonIdx > 0 {
			key := strings.TrimSpace(line[:colonIdx])
			val := strings.Trim(strings.TrimSpace(line[colonIdx+1:]), `"'`)
			if key != "" && val != "" {
				metadata[key] = val
			}
		}
	}

	return metadata, body
}
