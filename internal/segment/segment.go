// Package segment splits speech transcripts into ordered content fragments.
//
// Splitting is paragraph first: a transcript is cut on blank lines and any
// paragraph longer than the maximum length is cut again into fixed-width
// windows. The windows are not sentence aware and may end mid-sentence.
// Navigation chrome and boilerplate are dropped with IsNoise after windowing.
//
// All lengths are counted in characters (runes), never bytes, since
// transcripts are mostly multi-byte Japanese text.
package segment

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the default fragment size in characters.
const DefaultMaxLength = 600

// ErrInvalidMaxLength is returned by callers that validate a max length < 1.
var ErrInvalidMaxLength = errors.New("max fragment length must be at least 1")

// Fragment is one emitted fragment with its 1-based position in the speech.
type Fragment struct {
	Ordinal int
	Text    string
}

// ValidateMaxLength checks a user-supplied fragment length.
func ValidateMaxLength(maxLen int) error {
	if maxLen < 1 {
		return ErrInvalidMaxLength
	}
	return nil
}

// Segment splits raw into content fragments of at most maxLen characters,
// in document order. A maxLen below 1 falls back to DefaultMaxLength.
// An input with no content yields an empty, non-nil slice.
func Segment(raw string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = DefaultMaxLength
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var parts []string
	for _, para := range strings.Split(raw, "\n\n") {
		p := strings.TrimSpace(para)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= maxLen {
			parts = append(parts, p)
			continue
		}
		parts = append(parts, windows(p, maxLen)...)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if IsNoise(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Fragments is Segment with ordinals attached, numbered from 1.
func Fragments(raw string, maxLen int) []Fragment {
	texts := Segment(raw, maxLen)
	frags := make([]Fragment, len(texts))
	for i, t := range texts {
		frags[i] = Fragment{Ordinal: i + 1, Text: t}
	}
	return frags
}

// windows cuts p into consecutive non-overlapping runs of size characters.
func windows(p string, size int) []string {
	runes := []rune(p)
	var out []string
	for pos := 0; pos < len(runes); pos += size {
		end := pos + size
		if end > len(runes) {
			end = len(runes)
		}
		if w := strings.TrimSpace(string(runes[pos:end])); w != "" {
			out = append(out, w)
		}
	}
	return out
}
