package calendar

// =============================================================================
// RANGE - Inclusive span of calendar days
// =============================================================================

// Period is an inclusive [Start, End] span of days.
type Period struct {
	Start Date
	End   Date
}

// Valid reports whether Start <= End.
func (p Period) Valid() bool { return p.Start.BeforeOrEqual(p.End) }

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return p.Start.BeforeOrEqual(o.End) && p.End.AfterOrEqual(o.Start)
}

// Days returns every day in the period in ascending order.
func (p Period) Days() []Date { return Range(p.Start, p.End) }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Range enumerates the days from start to end inclusive, ascending.
// It returns nil when start is after end; validating the range is the caller's job.
func Range(start, end Date) []Date {
	if start.After(end) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(start, end)+1)
	for current := start; current.BeforeOrEqual(end); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// WorkingDaysBetween counts the days in [start, end] whose weekday is in working.
func WorkingDaysBetween(start, end Date, working WeekdaySet) int {
	count := 0
	for _, d := range Range(start, end) {
		if working.Contains(d.Weekday()) {
			count++
		}
	}
	return count
}
