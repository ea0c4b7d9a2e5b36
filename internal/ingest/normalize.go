package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/politicsradar/polr/internal/phase"
)

var (
	bodyStartRE = regexp.MustCompile(`(?m)^[0-9０-９]+[ 　]`)
	yearPartRE  = regexp.MustCompile(`^[0-9]{4}$`)
	monthDayRE  = regexp.MustCompile(`[0-9]{4}`)
)

// NormalizeText turns ideographic spaces into ASCII spaces, unifies line
// endings, right-trims every line and drops leading and trailing blank
// lines.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "　", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// ExtractBody returns the statement body of a page's full text: everything
// from the first line that starts with a number followed by a space
// ("１　始めに"), or the whole text when there is no such line.
func ExtractBody(fullText string) string {
	fullText = strings.ReplaceAll(fullText, "\r\n", "\n")
	fullText = strings.ReplaceAll(fullText, "\r", "\n")
	if loc := bodyStartRE.FindStringIndex(fullText); loc != nil {
		fullText = fullText[loc[0]:]
	}
	return NormalizeText(fullText)
}

// DateFromLocator infers a speech timestamp from a URL or file path laid
// out as .../YYYY/MMDD<slug>. It returns "YYYY-MM-DD 00:00", or "" when the
// locator does not carry a valid date.
func DateFromLocator(locator string) string {
	path := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		path = u.Path
	}
	path = strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}

	year := ""
	for _, p := range parts[:len(parts)-1] {
		if yearPartRE.MatchString(p) {
			year = p
		}
	}
	md := monthDayRE.FindString(parts[len(parts)-1])
	if year == "" || md == "" {
		return ""
	}

	date := year + "-" + md[:2] + "-" + md[2:]
	if _, err := phase.ParseDate(date); err != nil {
		return ""
	}
	return date + " 00:00"
}
