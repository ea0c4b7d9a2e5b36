package phase

import "time"

// Clock supplies "now" for open terms, whose provisional end is the
// evaluation date.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today returns the calendar date of c.Now() as a UTC midnight.
func Today(c Clock) time.Time {
	return dateOf(c.Now())
}

// TodayString returns Today formatted as YYYY-MM-DD.
func TodayString(c Clock) string {
	return Today(c).Format(DateLayout)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
