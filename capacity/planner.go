/*
planner.go - Feasibility verdicts for a proposed task

PURPOSE:
  Decides whether one user can absorb HoursNeeded more hours in [Start, End]
  and, when they can, suggests how to spread them.

VERDICTS:
  feasible_with_plan     available >= needed, at least one working day, plan attached
  feasible_without_plan  available >= needed but no working day to plan on
  infeasible             available < needed
  invalid_input          the request failed validation
  lookup_failed          a store or lookup failed

  CanHandle never returns an error. Bulk callers (team checks, ranking many
  candidates) branch on Verdict instead of handling errors per call.

EXAMPLE:
  8h/day Mon-Fri, nothing allocated, Monday..Friday:
    needed=30 -> feasible_with_plan, surplus=10, plan 6/6/6/6/6
    needed=50 -> infeasible, surplus=-10
*/
package capacity

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/metrics"
)

type Verdict string

const (
	VerdictFeasibleWithPlan    Verdict = "feasible_with_plan"
	VerdictFeasibleWithoutPlan Verdict = "feasible_without_plan"
	VerdictInfeasible          Verdict = "infeasible"
	VerdictInvalidInput        Verdict = "invalid_input"
	VerdictLookupFailed        Verdict = "lookup_failed"
)

// Feasible reports whether the verdict allows assigning the task.
func (v Verdict) Feasible() bool {
	return v == VerdictFeasibleWithPlan || v == VerdictFeasibleWithoutPlan
}

// Failed reports whether no computation took place.
func (v Verdict) Failed() bool {
	return v == VerdictInvalidInput || v == VerdictLookupFailed
}

// TaskRequest is a proposed piece of work for one user.
type TaskRequest struct {
	UserID      UserID
	Start       calendar.Date
	End         calendar.Date
	HoursNeeded decimal.Decimal
}

// FeasibilityResult carries everything a caller needs to render a decision.
// For failed verdicts only Verdict, CanHandle, UserID and Error are set.
type FeasibilityResult struct {
	Verdict   Verdict
	CanHandle bool
	UserID    UserID
	Error     string

	Period      calendar.Period
	WorkingDays int
	HoursPerDay decimal.Decimal
	HoursNeeded decimal.Decimal

	TotalCapacity  decimal.Decimal
	TotalAllocated decimal.Decimal
	TotalAvailable decimal.Decimal
	Surplus        decimal.Decimal // may be negative

	CurrentUtilization  int
	NewUtilization      int
	UtilizationIncrease int

	Suggested *DistributionPlan // set only for VerdictFeasibleWithPlan
	Daily     []DayAvailability
}

// =============================================================================
// PLANNER
// =============================================================================

type Planner struct {
	aggregator *Aggregator
	profiles   *ProfileProvider
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

func NewPlanner(aggregator *Aggregator, profiles *ProfileProvider) *Planner {
	return &Planner{aggregator: aggregator, profiles: profiles, logger: zap.NewNop()}
}

// CanHandle evaluates req. Failures are reported through the verdict.
func (p *Planner) CanHandle(ctx context.Context, req TaskRequest) FeasibilityResult {
	result := p.evaluate(ctx, req)
	p.metrics.FeasibilityChecked(string(result.Verdict))
	return result
}

func (p *Planner) evaluate(ctx context.Context, req TaskRequest) FeasibilityResult {
	if err := validateRange(req.UserID, req.Start, req.End); err != nil {
		return failed(req, VerdictInvalidInput, err)
	}
	if err := validateHours(req.HoursNeeded); err != nil {
		return failed(req, VerdictInvalidInput, err)
	}

	summary, err := p.aggregator.Availability(ctx, req.UserID, req.Start, req.End)
	if err != nil {
		return p.lookupFailed(req, err)
	}
	workingDays, err := p.profiles.WorkingDaysBetween(ctx, req.UserID, req.Start, req.End)
	if err != nil {
		return p.lookupFailed(req, err)
	}

	// Compared unrounded: a request a fraction of a cent over capacity is infeasible.
	needed := req.HoursNeeded
	result := FeasibilityResult{
		UserID:             req.UserID,
		Period:             summary.Period,
		WorkingDays:        workingDays,
		HoursPerDay:        decimal.Zero,
		HoursNeeded:        needed,
		TotalCapacity:      summary.TotalCapacity,
		TotalAllocated:     summary.TotalAllocated,
		TotalAvailable:     summary.TotalAvailable,
		Surplus:            summary.TotalAvailable.Sub(needed),
		CurrentUtilization: summary.UtilizationPercentage,
		NewUtilization:     Percentage(summary.TotalAllocated.Add(needed), summary.TotalCapacity),
		Daily:              summary.Daily,
	}
	result.UtilizationIncrease = result.NewUtilization - result.CurrentUtilization
	if workingDays > 0 {
		result.HoursPerDay = Round2(needed.Div(decimal.NewFromInt(int64(workingDays))))
	}

	result.CanHandle = summary.TotalAvailable.GreaterThanOrEqual(needed)
	switch {
	case !result.CanHandle:
		result.Verdict = VerdictInfeasible
	case workingDays > 0:
		plan := Distribute(summary.Daily, needed)
		result.Suggested = &plan
		result.Verdict = VerdictFeasibleWithPlan
	default:
		result.Verdict = VerdictFeasibleWithoutPlan
	}

	p.logger.Debug("feasibility evaluated",
		zap.String("user_id", string(req.UserID)),
		zap.String("verdict", string(result.Verdict)),
		zap.String("needed", needed.String()),
		zap.String("available", result.TotalAvailable.String()),
	)
	return result
}

func (p *Planner) lookupFailed(req TaskRequest, err error) FeasibilityResult {
	// Validation raised further down (e.g. by the aggregator) is still invalid input.
	if IsValidation(err) {
		return failed(req, VerdictInvalidInput, err)
	}
	p.logger.Warn("feasibility lookup failed",
		zap.String("user_id", string(req.UserID)),
		zap.Error(err),
	)
	return failed(req, VerdictLookupFailed, err)
}

func failed(req TaskRequest, verdict Verdict, err error) FeasibilityResult {
	return FeasibilityResult{
		Verdict:     verdict,
		CanHandle:   false,
		UserID:      req.UserID,
		Error:       err.Error(),
		Period:      calendar.Period{Start: req.Start, End: req.End},
		HoursNeeded: req.HoursNeeded,
	}
}
