// Package phase locates a date within a political term as a number in
// [0, 1]: 0 at (or before) the first day, 1 at (or after) the last.
//
// Open terms have no end date; their provisional end is the evaluation
// date taken from a Clock, and it is never written back to the term.
package phase

import (
	"math"
	"time"
)

// Calculator computes origin phases against a clock.
type Calculator struct {
	Clock Clock
}

// NewCalculator returns a Calculator; a nil clock means SystemClock.
func NewCalculator(c Clock) *Calculator {
	if c == nil {
		c = SystemClock{}
	}
	return &Calculator{Clock: c}
}

// Phase returns the position of target within [start, end]. A nil end
// means the term is ongoing. All arguments are reduced to calendar dates.
func (c *Calculator) Phase(start time.Time, end *time.Time, target time.Time) float64 {
	start = dateOf(start)
	target = dateOf(target)

	var effectiveEnd time.Time
	if end != nil {
		effectiveEnd = dateOf(*end)
	} else {
		effectiveEnd = Today(c.clock())
	}

	if !target.After(start) {
		return 0
	}
	if !target.Before(effectiveEnd) {
		return 1
	}

	total := daysBetween(start, effectiveEnd)
	if total < 1 {
		total = 1
	}
	return clamp(float64(daysBetween(start, target)) / float64(total))
}

// PhaseStrings is Phase over stored date strings. An empty end means the
// term is ongoing.
func (c *Calculator) PhaseStrings(start, end, target string) (float64, error) {
	s, err := ParseDate(start)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(target)
	if err != nil {
		return 0, err
	}
	var e *time.Time
	if end != "" {
		parsed, err := ParseDate(end)
		if err != nil {
			return 0, err
		}
		e = &parsed
	}
	return c.Phase(s, e, t), nil
}

func (c *Calculator) clock() Clock {
	if c.Clock == nil {
		return SystemClock{}
	}
	return c.Clock
}

// daysBetween counts whole days between two UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
