/*
engine.go - The outbound contract of the capacity engine

PURPOSE:
  Wires the components together and exposes the four operations callers use:

    GetUserAvailableHours(user, start, end)          -> *AvailabilitySummary
    CanUserHandleTask(user, start, end, hours)       -> FeasibilityResult
    CanUsersHandleTask(users, start, end, hours, s)  -> *TeamFeasibilityResult
    ClearCapacityCache(users...)                     -> drops cached profiles

  The engine performs no background work. Its only long-lived state is the
  profile cache.

USAGE:
  engine := capacity.NewEngine(capacity.StoresFrom(repo),
      capacity.WithLogger(logger),
      capacity.WithCacheTTL(2*time.Minute),
  )
  summary, err := engine.GetUserAvailableHours(ctx, "alice", monday, friday)
*/
package capacity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/metrics"
)

type engineOptions struct {
	logger      *zap.Logger
	cache       ProfileCache
	cacheTTL    time.Duration
	dayWorkers  int
	teamWorkers int
	policy      ConflictPolicy
	recurring   []RecurringException
	metrics     *metrics.Recorder
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*engineOptions)

func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCache replaces the process-local profile cache.
func WithCache(c ProfileCache) Option { return func(o *engineOptions) { o.cache = c } }

func WithCacheTTL(ttl time.Duration) Option { return func(o *engineOptions) { o.cacheTTL = ttl } }

// WithDayWorkers bounds concurrent per-day lookups. Values below 1 mean 1.
func WithDayWorkers(n int) Option { return func(o *engineOptions) { o.dayWorkers = n } }

// WithTeamWorkers bounds concurrent per-user checks. Values below 1 mean 1.
func WithTeamWorkers(n int) Option { return func(o *engineOptions) { o.teamWorkers = n } }

func WithConflictPolicy(p ConflictPolicy) Option { return func(o *engineOptions) { o.policy = p } }

// WithRecurringExceptions applies organisation-wide exceptions to every user.
func WithRecurringExceptions(r ...RecurringException) Option {
	return func(o *engineOptions) { o.recurring = append(o.recurring, r...) }
}

// WithMetrics records engine activity. A nil recorder disables metrics.
func WithMetrics(m *metrics.Recorder) Option { return func(o *engineOptions) { o.metrics = m } }

// WithClock replaces time.Now for cache freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	profiles   *ProfileProvider
	exceptions *ExceptionLookup
	accountant *Accountant
	aggregator *Aggregator
	planner    *Planner
	team       *TeamPlanner
	logger     *zap.Logger
}

func NewEngine(stores Stores, opts ...Option) *Engine {
	o := engineOptions{
		logger:      zap.NewNop(),
		cacheTTL:    DefaultCacheTTL,
		dayWorkers:  DefaultDayWorkers,
		teamWorkers: DefaultTeamWorkers,
		policy:      ConflictFirstWins,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.Named("capacity")

	profiles := NewProfileProvider(stores.Profiles, o.cache, o.cacheTTL)
	profiles.now = o.now
	profiles.logger = logger
	profiles.metrics = o.metrics

	exceptions := NewExceptionLookup(stores.Exceptions, o.policy, o.recurring)
	accountant := NewAccountant(stores.Tasks, profiles)

	aggregator := NewAggregator(profiles, exceptions, accountant)
	aggregator.workers = max(1, o.dayWorkers)
	aggregator.logger = logger
	aggregator.metrics = o.metrics

	planner := NewPlanner(aggregator, profiles)
	planner.logger = logger
	planner.metrics = o.metrics

	team := NewTeamPlanner(planner)
	team.workers = max(1, o.teamWorkers)
	team.logger = logger
	team.metrics = o.metrics

	return &Engine{
		profiles:   profiles,
		exceptions: exceptions,
		accountant: accountant,
		aggregator: aggregator,
		planner:    planner,
		team:       team,
		logger:     logger,
	}
}

// GetUserAvailableHours returns the availability breakdown for [start, end].
func (e *Engine) GetUserAvailableHours(ctx context.Context, userID UserID, start, end calendar.Date) (*AvailabilitySummary, error) {
	return e.aggregator.Availability(ctx, userID, start, end)
}

// CanUserHandleTask never returns an error; inspect Verdict.
func (e *Engine) CanUserHandleTask(ctx context.Context, userID UserID, start, end calendar.Date, hoursNeeded decimal.Decimal) FeasibilityResult {
	return e.planner.CanHandle(ctx, TaskRequest{UserID: userID, Start: start, End: end, HoursNeeded: hoursNeeded})
}

// CanUsersHandleTask splits totalHours across users with the named strategy.
func (e *Engine) CanUsersHandleTask(ctx context.Context, userIDs []UserID, start, end calendar.Date, totalHours decimal.Decimal, strategy string) (*TeamFeasibilityResult, error) {
	return e.team.CanTeamHandle(ctx, TeamRequest{
		UserIDs:    userIDs,
		Start:      start,
		End:        end,
		TotalHours: totalHours,
		Strategy:   strategy,
	})
}

// ClearCapacityCache drops the cached profiles of userIDs, or every cached
// profile when called without arguments.
func (e *Engine) ClearCapacityCache(userIDs ...UserID) {
	if len(userIDs) == 0 {
		e.profiles.InvalidateAll()
		e.logger.Debug("capacity cache cleared")
		return
	}
	for _, id := range userIDs {
		e.profiles.Invalidate(id)
	}
	e.logger.Debug("capacity cache entries cleared", zap.Int("users", len(userIDs)))
}

// Profile returns the user's profile through the cache, creating it if needed.
func (e *Engine) Profile(ctx context.Context, userID UserID) (Profile, error) {
	return e.profiles.Profile(ctx, userID)
}

// DailyCapacity returns the user's capacity on one day.
func (e *Engine) DailyCapacity(ctx context.Context, userID UserID, date calendar.Date) (decimal.Decimal, error) {
	return e.aggregator.DailyCapacity(ctx, userID, date)
}

// AllocatedHours returns the hours already committed to the user on date.
func (e *Engine) AllocatedHours(ctx context.Context, userID UserID, date calendar.Date) (decimal.Decimal, error) {
	return e.accountant.AllocatedHours(ctx, userID, date)
}

// Exceptions returns the exceptions governing each day of [start, end].
func (e *Engine) Exceptions(ctx context.Context, userID UserID, start, end calendar.Date) (ExceptionSet, error) {
	return e.exceptions.InRange(ctx, userID, start, end)
}
