package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLImporter handles saved statement pages (.html, .htm).
type HTMLImporter struct{}

// CanHandle returns true for HTML file extensions.
func (h *HTMLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// Import extracts one speech from a saved statement page. The title is the
// first <h1> (falling back to <title>), the source locator is the canonical
// URL when the page declares one, and the body is the page text from the
// first numbered heading on.
func (h *HTMLImporter) Import(ctx context.Context, path string) ([]Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML %s: %w", path, err)
	}

	page := &htmlPage{}
	page.meta(root)
	page.walk(root)

	body := ExtractBody(page.text.String())
	if body == "" {
		return nil, nil
	}

	title := page.h1
	if title == "" {
		title = page.title
	}

	return []Document{{
		Title:      title,
		Context:    DefaultHTMLContext,
		Text:       body,
		SourceURL:  page.canonical,
		SourceFile: absPath,
	}}, nil
}

type htmlPage struct {
	text      strings.Builder
	h1        string
	title     string
	canonical string
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Figcaption: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tr: true,
	atom.Td: true, atom.Th: true, atom.Ul: true, atom.Br: true,
}

// meta records the title, first heading and canonical URL anywhere in the tree.
func (p *htmlPage) meta(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Title:
			if p.title == "" {
				p.title = strings.TrimSpace(nodeText(n))
			}
		case atom.H1:
			if p.h1 == "" {
				p.h1 = strings.Join(strings.Fields(nodeText(n)), " ")
			}
		case atom.Link:
			if p.canonical == "" && strings.EqualFold(attr(n, "rel"), "canonical") {
				p.canonical = strings.TrimSpace(attr(n, "href"))
			}
		case atom.Meta:
			if p.canonical == "" && attr(n, "property") == "og:url" {
				p.canonical = strings.TrimSpace(attr(n, "content"))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.meta(c)
	}
}

// walk appends visible text, breaking lines at block elements.
func (p *htmlPage) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.text.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		p.text.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
	if block {
		p.text.WriteString("\n")
	}
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
