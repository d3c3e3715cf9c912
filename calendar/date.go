/*
Package calendar provides day-granular date handling for the capacity engine.

PURPOSE:
  Every capacity question is asked in whole calendar days: "how many hours can
  Alice work on 2025-03-10?". This package owns the Date type and the pure
  helpers built on it: range enumeration, weekday naming, canonical keys, and
  working-day counting.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: a timezone-naive calendar day (always stored as UTC midnight)
  - Format/ParseDate: the canonical YYYY-MM-DD key used by lookups and caches
  - DateOf: collapses any time.Time onto its calendar day

TIMEZONE ASSUMPTION:
  All dates are treated as timezone-naive calendar days. DateOf keeps the
  year/month/day as seen in the value's own location and discards the rest, so
  "2025-03-10T23:30:00-05:00" and "2025-03-10T08:00:00Z" share the same key.

SEE ALSO:
  - range.go: Range enumeration and working-day counting
  - weekday.go: WeekdaySet and weekday names
  - recurrence.go: RRULE expansion for recurring days
*/
package calendar

import (
	"fmt"
	"time"
)

// KeyLayout is the canonical YYYY-MM-DD layout.
const KeyLayout = "2006-01-02"

// =============================================================================
// DATE - Calendar day without time-of-day semantics
// =============================================================================

type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts. Out-of-range parts normalize like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD key. RFC3339 timestamps are accepted as well
// and collapsed onto their calendar day.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(KeyLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format returns the canonical YYYY-MM-DD key for d.
func Format(d Date) string { return d.String() }

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }

// Start returns the first instant of the day (UTC midnight).
func (d Date) Start() time.Time { return d.t }

// End returns the last instant of the day.
func (d Date) End() time.Time { return d.t.Add(24*time.Hour - time.Nanosecond) }

// Time returns the day as UTC midnight.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(KeyLayout)
}

// MarshalText encodes the date as YYYY-MM-DD (JSON, YAML).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD key.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of days from -> to (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}
