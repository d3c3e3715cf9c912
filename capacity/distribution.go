package capacity

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// GREEDY DISTRIBUTION - Spread required hours over days with slack
// =============================================================================

type PlannedDay struct {
	Date         calendar.Date
	DayName      string
	PlannedHours decimal.Decimal
	Available    decimal.Decimal
}

// DistributionPlan is date-ascending. Unassigned is non-zero only when the
// candidate days could not absorb the whole total.
type DistributionPlan struct {
	Days       []PlannedDay
	Total      decimal.Decimal
	Unassigned decimal.Decimal
}

// Planned returns the sum of planned hours.
func (p DistributionPlan) Planned() decimal.Decimal {
	sum := decimal.Zero
	for _, d := range p.Days {
		sum = sum.Add(d.PlannedHours)
	}
	return Round2(sum)
}

// Distribute places total hours on the days of daily that still have
// available capacity, filling the highest-slack days first:
//
//  1. keep days with available > 0, sorted by available descending
//  2. give each min(round2(total/n), available, remaining)
//  3. top up in the same order until remaining is zero or no slack is left
//  4. return the plan sorted by date
//
// Plans are in whole cents: total is rounded up to the next cent first, so a
// sub-cent request still gets a planned day. No day is ever given more than
// its available hours.
func Distribute(daily []DayAvailability, total decimal.Decimal) DistributionPlan {
	total = total.RoundCeil(2)
	plan := DistributionPlan{Days: []PlannedDay{}, Total: total, Unassigned: total}

	for _, d := range daily {
		if d.Available.IsPositive() {
			plan.Days = append(plan.Days, PlannedDay{
				Date:         d.Date,
				DayName:      d.DayName,
				PlannedHours: decimal.Zero,
				Available:    d.Available,
			})
		}
	}
	if len(plan.Days) == 0 || !total.IsPositive() {
		return plan
	}

	// Stable on date-ascending input, so equal slack keeps chronological order.
	sort.SliceStable(plan.Days, func(i, j int) bool {
		return plan.Days[i].Available.GreaterThan(plan.Days[j].Available)
	})

	remaining := total
	base := Round2(total.Div(decimal.NewFromInt(int64(len(plan.Days)))))
	for i := range plan.Days {
		day := &plan.Days[i]
		assign := decimal.Min(base, day.Available, remaining)
		if assign.IsNegative() {
			assign = decimal.Zero
		}
		day.PlannedHours = assign
		remaining = Round2(remaining.Sub(assign))
	}

	for remaining.IsPositive() {
		progressed := false
		for i := range plan.Days {
			if !remaining.IsPositive() {
				break
			}
			day := &plan.Days[i]
			spare := day.Available.Sub(day.PlannedHours)
			if !spare.IsPositive() {
				continue
			}
			topUp := decimal.Min(spare, remaining)
			day.PlannedHours = Round2(day.PlannedHours.Add(topUp))
			remaining = Round2(remaining.Sub(topUp))
			progressed = true
		}
		if !progressed {
			break
		}
	}

	sort.SliceStable(plan.Days, func(i, j int) bool {
		return plan.Days[i].Date.Before(plan.Days[j].Date)
	})
	plan.Unassigned = remaining
	return plan
}
