/*
availability.go - Per-day capacity, allocation and availability

PURPOSE:
  Combines the profile, exceptions and existing allocations into the answer
  to "how many hours does this person have free between A and B?".

DAILY CAPACITY:
  0                          if the weekday is not a working weekday
  exception.AvailableHours   if an exception governs that date
  profile.DailyCapacityHours otherwise

  available = max(0, capacity - allocated)

ROUNDING:
  Each day's capacity/allocated/available is rounded to 2 places before it is
  summed, and the totals are rounded again. Changing this order changes totals
  by cents, so it is kept exactly.

CONCURRENCY:
  Days have no ordering dependency. Allocation lookups run on a bounded
  errgroup and are written back by index, so the breakdown is always
  date-ascending and totals are summed in date order.

EXAMPLE:
  Profile 8h/day Mon-Fri, no exceptions, no tasks, range = one Monday:
    TotalCapacity=8 TotalAllocated=0 TotalAvailable=8 Utilization=0
*/
package capacity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/metrics"
)

// DefaultDayWorkers bounds concurrent per-day lookups for one range query.
const DefaultDayWorkers = 4

// =============================================================================
// RESULT TYPES
// =============================================================================

type DayAvailability struct {
	Date          calendar.Date
	DayName       string
	Capacity      decimal.Decimal
	Allocated     decimal.Decimal
	Available     decimal.Decimal
	ExceptionType ExceptionType // empty when no exception governs the day
}

type AvailabilitySummary struct {
	UserID                UserID
	Period                calendar.Period
	TotalCapacity         decimal.Decimal
	TotalAllocated        decimal.Decimal
	TotalAvailable        decimal.Decimal
	UtilizationPercentage int
	Daily                 []DayAvailability // date-ascending
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	profiles   *ProfileProvider
	exceptions *ExceptionLookup
	accountant *Accountant
	workers    int
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

func NewAggregator(profiles *ProfileProvider, exceptions *ExceptionLookup, accountant *Accountant) *Aggregator {
	return &Aggregator{
		profiles:   profiles,
		exceptions: exceptions,
		accountant: accountant,
		workers:    DefaultDayWorkers,
		logger:     zap.NewNop(),
	}
}

// DailyCapacity returns the user's capacity on a single day.
func (a *Aggregator) DailyCapacity(ctx context.Context, userID UserID, date calendar.Date) (decimal.Decimal, error) {
	profile, err := a.profiles.Profile(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if !profile.Works(date) {
		return decimal.Zero, nil
	}
	exception, err := a.exceptions.ForDate(ctx, userID, date)
	if err != nil {
		return decimal.Zero, err
	}
	if exception != nil {
		return exception.AvailableHours, nil
	}
	return profile.DailyCapacityHours, nil
}

// Availability returns the day-by-day and total breakdown for [start, end].
func (a *Aggregator) Availability(ctx context.Context, userID UserID, start, end calendar.Date) (*AvailabilitySummary, error) {
	began := time.Now()
	if err := validateRange(userID, start, end); err != nil {
		return nil, err
	}

	profile, err := a.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	exceptions, err := a.exceptions.InRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	days := calendar.Range(start, end)
	daily := make([]DayAvailability, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, d := range days {
		g.Go(func() error {
			allocated, err := a.accountant.AllocatedHours(gctx, userID, d)
			if err != nil {
				return err
			}
			daily[i] = buildDay(profile, exceptions, d, allocated)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &AvailabilitySummary{
		UserID:         userID,
		Period:         calendar.Period{Start: start, End: end},
		TotalCapacity:  decimal.Zero,
		TotalAllocated: decimal.Zero,
		TotalAvailable: decimal.Zero,
		Daily:          daily,
	}
	for _, day := range daily {
		summary.TotalCapacity = summary.TotalCapacity.Add(day.Capacity)
		summary.TotalAllocated = summary.TotalAllocated.Add(day.Allocated)
		summary.TotalAvailable = summary.TotalAvailable.Add(day.Available)
	}
	summary.TotalCapacity = Round2(summary.TotalCapacity)
	summary.TotalAllocated = Round2(summary.TotalAllocated)
	summary.TotalAvailable = Round2(summary.TotalAvailable)
	summary.UtilizationPercentage = Percentage(summary.TotalAllocated, summary.TotalCapacity)

	a.metrics.ObserveAvailability(time.Since(began), len(days))
	a.logger.Debug("availability aggregated",
		zap.String("user_id", string(userID)),
		zap.Stringer("period", summary.Period),
		zap.String("capacity", summary.TotalCapacity.String()),
		zap.String("allocated", summary.TotalAllocated.String()),
		zap.Int("utilization", summary.UtilizationPercentage),
	)
	return summary, nil
}

func buildDay(profile Profile, exceptions ExceptionSet, d calendar.Date, allocated decimal.Decimal) DayAvailability {
	day := DayAvailability{
		Date:      d,
		DayName:   calendar.WeekdayName(d),
		Capacity:  decimal.Zero,
		Allocated: Round2(allocated),
	}
	if profile.Works(d) {
		day.Capacity = profile.DailyCapacityHours
		if e, ok := exceptions.On(d); ok {
			day.Capacity = e.AvailableHours
			day.ExceptionType = e.Type
		}
	}
	day.Capacity = Round2(day.Capacity)
	day.Available = Round2(decimal.Max(decimal.Zero, day.Capacity.Sub(day.Allocated)))
	return day
}
