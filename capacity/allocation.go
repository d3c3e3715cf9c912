package capacity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// ALLOCATION ACCOUNTANT - Hours already committed on a day
// =============================================================================

// Accountant spreads each active task's effort evenly across its assignees
// and across the queried user's working days in the task span.
//
// The working-day count uses the weekday profile only. Exception days inside
// the span (leave in the middle of a task) still receive a share, so a task's
// per-day load is understated when the assignee is away.
type Accountant struct {
	tasks    TaskStore
	profiles *ProfileProvider
}

func NewAccountant(tasks TaskStore, profiles *ProfileProvider) *Accountant {
	return &Accountant{tasks: tasks, profiles: profiles}
}

// AllocatedHours returns the user's committed hours on date, rounded to 2 places.
func (a *Accountant) AllocatedHours(ctx context.Context, userID UserID, date calendar.Date) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, newValidationError("user_id", ErrMissingUser)
	}

	tasks, err := a.tasks.ActiveTasksForAssignee(ctx, userID, date.Start(), date.End())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load tasks for %s on %s: %w", userID, date, err)
	}

	total := decimal.Zero
	for _, task := range tasks {
		share, err := a.dailyShare(ctx, userID, task)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(share)
	}
	return Round2(total), nil
}

// dailyShare is (estimate / assignees) / workingDays, or zero when the span
// holds no working day for the user.
func (a *Accountant) dailyShare(ctx context.Context, userID UserID, task TaskAssignment) (decimal.Decimal, error) {
	if task.Status.Terminal() || len(task.Assignees) == 0 {
		return decimal.Zero, nil
	}
	workingDays, err := a.profiles.WorkingDaysBetween(ctx, userID, task.StartDate, task.DueDate)
	if err != nil {
		return decimal.Zero, err
	}
	if workingDays <= 0 {
		return decimal.Zero, nil
	}
	return task.PerAssigneeHours().Div(decimal.NewFromInt(int64(workingDays))), nil
}
