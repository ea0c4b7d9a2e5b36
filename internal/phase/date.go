package phase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date prefix every stored date starts with.
const DateLayout = "2006-01-02"

// ErrMalformedDate marks a date string without a parseable YYYY-MM-DD
// prefix. It signals upstream data corruption and is never recovered.
var ErrMalformedDate = errors.New("malformed date")

// ParseDate parses the YYYY-MM-DD prefix of s, dropping any time of day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return t, nil
}

// DatePrefix returns the first ten characters of a timestamp, the form
// stored in chunk_metrics.date. Shorter input is returned unchanged.
func DatePrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

// NormalizeDate validates s and returns its YYYY-MM-DD form.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}
