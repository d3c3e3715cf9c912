/*
Package capacity provides the capacity and availability engine.

PURPOSE:
  Answers "can this person take on N more hours between date A and date B,
  and if so, how should those hours be spread across days?". Everything else
  (projects, users, leave requests) lives in collaborators that supply the
  inputs defined here and consume the verdicts and plans produced here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Profile: a user's baseline daily/weekly hours and working weekdays
  - WorkException: a per-date override of daily capacity (holiday, leave)
  - TaskAssignment: an existing task whose effort is already committed
  - Hours: decimal.Decimal values rounded to 2 places at every boundary

DATA FLOW:
  Planner -> Aggregator -> {calendar, ProfileProvider, ExceptionLookup, Accountant}

DESIGN PRINCIPLES:
  1. Precision: hours use decimal.Decimal, rounded with Round2 at each
     accumulation boundary so multi-day sums never drift
  2. Self-healing: a missing profile is created with defaults, never "not found"
  3. Read-only inputs: exceptions and tasks are never written by the engine

SEE ALSO:
  - store.go: repositories supplied by collaborators
  - availability.go: per-day capacity/allocation breakdown
  - planner.go: feasibility verdicts and distribution plans
*/
package capacity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// HOURS - decimal quantities rounded to cents
// =============================================================================

var (
	// DefaultDailyHours is the daily capacity given to a freshly created profile.
	DefaultDailyHours = decimal.NewFromInt(8)

	// DefaultWeeklyHours is informational only; no algorithm enforces it.
	DefaultWeeklyHours = decimal.NewFromInt(40)

	// MaxDailyHours caps exception hours on write.
	MaxDailyHours = decimal.NewFromInt(24)

	hundred = decimal.NewFromInt(100)
)

// Hours converts a float literal to a decimal hour value.
func Hours(h float64) decimal.Decimal { return decimal.NewFromFloat(h) }

// Round2 rounds to 2 decimal places (half away from zero).
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Percentage returns round(100 * part / whole), or 0 when whole is not positive.
func Percentage(part, whole decimal.Decimal) int {
	if !whole.IsPositive() {
		return 0
	}
	return int(part.Mul(hundred).Div(whole).Round(0).IntPart())
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TaskID string
type ExceptionID string

// =============================================================================
// CAPACITY PROFILE - One per user, created lazily
// =============================================================================

type Profile struct {
	UserID              UserID
	DailyCapacityHours  decimal.Decimal
	WeeklyCapacityHours decimal.Decimal
	WorkingWeekdays     calendar.WeekdaySet
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DefaultProfile returns the profile created for a user on first lookup:
// 8h/day, 40h/week, Monday to Friday.
func DefaultProfile(userID UserID) Profile {
	return Profile{
		UserID:              userID,
		DailyCapacityHours:  DefaultDailyHours,
		WeeklyCapacityHours: DefaultWeeklyHours,
		WorkingWeekdays:     calendar.DefaultWorkWeek(),
	}
}

// Works reports whether the user normally works on d's weekday.
func (p Profile) Works(d calendar.Date) bool {
	return p.WorkingWeekdays.Contains(d.Weekday())
}

// Clone returns a copy that shares no slices with p.
func (p Profile) Clone() Profile {
	c := p
	c.WorkingWeekdays = append(calendar.WeekdaySet(nil), p.WorkingWeekdays...)
	return c
}

// =============================================================================
// WORK EXCEPTION - Date-specific capacity override
// =============================================================================

type ExceptionType string

const (
	ExceptionHoliday   ExceptionType = "holiday"
	ExceptionSickLeave ExceptionType = "sick_leave"
	ExceptionVacation  ExceptionType = "vacation"
	ExceptionOther     ExceptionType = "other"
)

// Valid reports whether t is one of the known exception types.
func (t ExceptionType) Valid() bool {
	switch t {
	case ExceptionHoliday, ExceptionSickLeave, ExceptionVacation, ExceptionOther:
		return true
	}
	return false
}

type WorkException struct {
	ID             ExceptionID
	UserID         UserID
	Date           calendar.Date
	AvailableHours decimal.Decimal
	Type           ExceptionType
	Reason         string
	CreatedAt      time.Time
}

// =============================================================================
// TASK ASSIGNMENT - Existing committed work (read-only here)
// =============================================================================

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
)

// Terminal reports whether the status no longer consumes capacity.
func (s TaskStatus) Terminal() bool { return s == StatusDone }

type TaskAssignment struct {
	ID             TaskID
	Title          string
	Assignees      []UserID
	StartDate      calendar.Date
	DueDate        calendar.Date
	EstimatedHours decimal.Decimal // whole task, shared across assignees
	Status         TaskStatus
	CreatedAt      time.Time
}

// Period returns the task's inclusive [StartDate, DueDate] span.
func (t TaskAssignment) Period() calendar.Period {
	return calendar.Period{Start: t.StartDate, End: t.DueDate}
}

// HasAssignee reports whether userID is among the assignees.
func (t TaskAssignment) HasAssignee(userID UserID) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// PerAssigneeHours splits the estimate evenly across assignees.
func (t TaskAssignment) PerAssigneeHours() decimal.Decimal {
	if len(t.Assignees) == 0 {
		return decimal.Zero
	}
	return t.EstimatedHours.Div(decimal.NewFromInt(int64(len(t.Assignees))))
}
