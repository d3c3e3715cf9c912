package capacity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/metrics"
)

// DefaultTeamWorkers bounds concurrent per-user checks in a team request.
const DefaultTeamWorkers = 8

// =============================================================================
// TEAM FEASIBILITY - Independent per-user checks over a shared task
// =============================================================================

type TeamRequest struct {
	UserIDs    []UserID
	Start      calendar.Date
	End        calendar.Date
	TotalHours decimal.Decimal
	Strategy   string // empty means equal
}

type TeamFeasibilityResult struct {
	CanAssignToTeam bool
	Strategy        string
	HoursPerUser    []decimal.Decimal   // aligned with Results, rounded to cents
	Results         []FeasibilityResult // input order
	FailedUsers     []UserID
	TotalUsers      int
	CapableUsers    int
}

// TeamPlanner runs the single-user planner once per team member. Users do
// not share capacity, so the checks run concurrently.
type TeamPlanner struct {
	planner *Planner
	workers int
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewTeamPlanner(planner *Planner) *TeamPlanner {
	return &TeamPlanner{planner: planner, workers: DefaultTeamWorkers, logger: zap.NewNop()}
}

// CanTeamHandle reports whether every user can take their share of the task.
// Per-user validation problems show up as failed users, not as an error.
func (t *TeamPlanner) CanTeamHandle(ctx context.Context, req TeamRequest) (*TeamFeasibilityResult, error) {
	if len(req.UserIDs) == 0 {
		return nil, newValidationError("user_ids", ErrEmptyTeam)
	}
	strategy, err := LookupStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	shares := strategy.Split(req.TotalHours, req.UserIDs)
	if len(shares) != len(req.UserIDs) {
		return nil, fmt.Errorf("%w: %s returned %d shares for %d users",
			ErrUnsupportedStrategy, strategy.Name(), len(shares), len(req.UserIDs))
	}
	results := make([]FeasibilityResult, len(req.UserIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, userID := range req.UserIDs {
		g.Go(func() error {
			results[i] = t.planner.CanHandle(gctx, TaskRequest{
				UserID:      userID,
				Start:       req.Start,
				End:         req.End,
				HoursNeeded: shares[i],
			})
			return nil
		})
	}
	_ = g.Wait() // CanHandle never fails

	display := make([]decimal.Decimal, len(shares))
	for i, share := range shares {
		display[i] = Round2(share)
	}

	out := &TeamFeasibilityResult{
		CanAssignToTeam: true,
		Strategy:        strategy.Name(),
		HoursPerUser:    display,
		Results:         results,
		FailedUsers:     []UserID{},
		TotalUsers:      len(results),
	}
	for _, r := range results {
		if r.CanHandle {
			out.CapableUsers++
			continue
		}
		out.CanAssignToTeam = false
		out.FailedUsers = append(out.FailedUsers, r.UserID)
	}

	t.metrics.TeamChecked(out.Strategy, out.CanAssignToTeam)
	t.logger.Debug("team feasibility evaluated",
		zap.Int("users", out.TotalUsers),
		zap.Int("capable", out.CapableUsers),
		zap.Bool("assignable", out.CanAssignToTeam),
	)
	return out, nil
}
