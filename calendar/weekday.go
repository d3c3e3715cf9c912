package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// WEEKDAY SET - Which days of the week a person normally works
// =============================================================================

// WeekdaySet is an unordered set of weekdays. Duplicates are harmless.
type WeekdaySet []time.Weekday

// DefaultWorkWeek is Monday through Friday.
func DefaultWorkWeek() WeekdaySet {
	return WeekdaySet{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// WeekdayName returns the canonical weekday name ("Monday") for d.
func WeekdayName(d Date) string {
	return d.Weekday().String()
}

func (s WeekdaySet) Contains(wd time.Weekday) bool {
	for _, w := range s {
		if w == wd {
			return true
		}
	}
	return false
}

// Names returns the weekday names in week order starting Monday.
func (s WeekdaySet) Names() []string {
	seen := make(map[time.Weekday]bool, len(s))
	var days []time.Weekday
	for _, w := range s {
		if !seen[w] {
			seen[w] = true
			days = append(days, w)
		}
	}
	sort.Slice(days, func(i, j int) bool { return mondayFirst(days[i]) < mondayFirst(days[j]) })

	names := make([]string, len(days))
	for i, w := range days {
		names[i] = w.String()
	}
	return names
}

func (s WeekdaySet) String() string { return strings.Join(s.Names(), ",") }

func mondayFirst(w time.Weekday) int { return (int(w) + 6) % 7 }

// ParseWeekday accepts full or three-letter names, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if n == full || n == full[:3] {
			return wd, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}

// ParseWeekdays parses a list of weekday names.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	set := make(WeekdaySet, 0, len(names))
	for _, n := range names {
		wd, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		set = append(set, wd)
	}
	return set, nil
}

// MarshalYAML encodes the set as weekday names.
func (s WeekdaySet) MarshalYAML() (any, error) { return s.Names(), nil }

func (s *WeekdaySet) UnmarshalYAML(unmarshal func(any) error) error {
	var names []string
	if err := unmarshal(&names); err != nil {
		return err
	}
	parsed, err := ParseWeekdays(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
