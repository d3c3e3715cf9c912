package calendar

import (
	"fmt"

	"github.com/teambition/rrule-go"
)

// DefaultAnchor is used for rules that do not carry their own anchor day.
// Rules should pin their days with BYMONTH/BYMONTHDAY/BYDAY; the anchor only
// decides where FREQ/INTERVAL counting starts.
var DefaultAnchor = NewDate(2000, 1, 1)

// Recurrence expands an RFC 5545 RRULE into calendar days.
type Recurrence struct {
	rule *rrule.RRule
	text string
}

// NewRecurrence parses rule (e.g. "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25").
// A zero anchor means DefaultAnchor.
func NewRecurrence(rule string, anchor Date) (*Recurrence, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", rule, err)
	}
	if anchor.IsZero() {
		anchor = DefaultAnchor
	}
	r.DTStart(anchor.Start())
	return &Recurrence{rule: r, text: rule}, nil
}

// Between returns the occurrence days within [start, end] inclusive, ascending.
func (r *Recurrence) Between(start, end Date) []Date {
	if start.After(end) {
		return nil
	}
	occurrences := r.rule.Between(start.Start(), end.End(), true)
	days := make([]Date, 0, len(occurrences))
	for _, o := range occurrences {
		days = append(days, DateOf(o))
	}
	return days
}

// Includes reports whether d is an occurrence.
func (r *Recurrence) Includes(d Date) bool {
	return len(r.Between(d, d)) > 0
}

func (r *Recurrence) String() string { return r.text }
