package capacity_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/capacity/store"
	"github.com/warp/capacity-engine/metrics"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	monday    = calendar.NewDate(2025, time.March, 10)
	tuesday   = monday.AddDays(1)
	wednesday = monday.AddDays(2)
	friday    = monday.AddDays(4)
	saturday  = monday.AddDays(5)
	sunday    = monday.AddDays(6)
)

// countingStore counts profile reads reaching the backing store.
type countingStore struct {
	*store.Memory
	profileReads atomic.Int32
}

func (c *countingStore) GetProfile(ctx context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	c.profileReads.Add(1)
	return c.Memory.GetProfile(ctx, userID)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts ...capacity.Option) (*capacity.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return capacity.NewEngine(capacity.StoresFrom(mem), opts...), mem
}

func hours(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertHours(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, hours(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func saveTask(t *testing.T, mem *store.Memory, id string, est string, start, due calendar.Date, status capacity.TaskStatus, assignees ...capacity.UserID) {
	t.Helper()
	require.NoError(t, mem.SaveTask(context.Background(), capacity.TaskAssignment{
		ID:             capacity.TaskID(id),
		Title:          id,
		Assignees:      assignees,
		StartDate:      start,
		DueDate:        due,
		EstimatedHours: hours(est),
		Status:         status,
	}))
}

func saveException(t *testing.T, mem *store.Memory, id string, user capacity.UserID, d calendar.Date, avail string, typ capacity.ExceptionType) {
	t.Helper()
	require.NoError(t, mem.SaveException(context.Background(), capacity.WorkException{
		ID:             capacity.ExceptionID(id),
		UserID:         user,
		Date:           d,
		AvailableHours: hours(avail),
		Type:           typ,
	}))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioA_SingleMondayNothingBooked(t *testing.T) {
	// GIVEN: Default profile (8h/day Mon-Fri), no exceptions, no tasks
	// WHEN: Querying availability for one Monday
	// THEN: 8h capacity, nothing allocated, 8h available, 0% utilization

	engine, _ := newTestEngine(t)

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, monday)
	require.NoError(t, err)

	assertHours(t, "8", summary.TotalCapacity)
	assertHours(t, "0", summary.TotalAllocated)
	assertHours(t, "8", summary.TotalAvailable)
	assert.Equal(t, 0, summary.UtilizationPercentage)
	require.Len(t, summary.Daily, 1)
	assert.Equal(t, "Monday", summary.Daily[0].DayName)
}

func TestScenarioB_ExceptionReplacesDailyCapacity(t *testing.T) {
	// GIVEN: A 2h exception on Monday
	// WHEN: Querying that Monday
	// THEN: Capacity is 2, not 8

	engine, mem := newTestEngine(t)
	saveException(t, mem, "ex-1", "alice", monday, "2", capacity.ExceptionVacation)

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, monday)
	require.NoError(t, err)

	assertHours(t, "2", summary.TotalCapacity)
	assert.Equal(t, capacity.ExceptionVacation, summary.Daily[0].ExceptionType)

	daily, err := engine.DailyCapacity(context.Background(), "alice", monday)
	require.NoError(t, err)
	assertHours(t, "2", daily)
}

func TestScenarioC_SharedTaskSplitsAcrossAssigneesAndDays(t *testing.T) {
	// GIVEN: 40h task, two assignees, Monday to Friday, in progress
	// WHEN: Computing alice's allocation
	// THEN: (40/2)/5 = 4h on each working day

	engine, mem := newTestEngine(t)
	saveTask(t, mem, "task-1", "40", monday, friday, capacity.StatusInProgress, "alice", "bob")

	for _, d := range calendar.Range(monday, friday) {
		allocated, err := engine.AllocatedHours(context.Background(), "alice", d)
		require.NoError(t, err)
		assertHours(t, "4", allocated, d.String())
	}

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, friday)
	require.NoError(t, err)
	assertHours(t, "20", summary.TotalAllocated)
	assertHours(t, "20", summary.TotalAvailable)
	assert.Equal(t, 50, summary.UtilizationPercentage)
}

func TestScenarioD_NotEnoughHours(t *testing.T) {
	// GIVEN: 40h of capacity Monday to Friday, nothing allocated
	// WHEN: Asking for 50h
	// THEN: Infeasible with a -10 surplus and no plan

	engine, _ := newTestEngine(t)

	result := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours("50"))

	assert.False(t, result.CanHandle)
	assert.Equal(t, capacity.VerdictInfeasible, result.Verdict)
	assertHours(t, "-10", result.Surplus)
	assert.Nil(t, result.Suggested)
	assert.Equal(t, 125, result.NewUtilization)
	assert.Equal(t, 5, result.WorkingDays)
}

func TestScenarioE_PlanSumsToHoursNeeded(t *testing.T) {
	// GIVEN: 40h of capacity Monday to Friday, nothing allocated
	// WHEN: Asking for 30h
	// THEN: Feasible, five planned days of 6h summing to exactly 30

	engine, _ := newTestEngine(t)

	result := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours("30"))

	require.True(t, result.CanHandle)
	assert.Equal(t, capacity.VerdictFeasibleWithPlan, result.Verdict)
	require.NotNil(t, result.Suggested)
	require.Len(t, result.Suggested.Days, 5)
	for _, d := range result.Suggested.Days {
		assertHours(t, "6", d.PlannedHours)
	}
	assertHours(t, "30", result.Suggested.Planned())
	assertHours(t, "0", result.Suggested.Unassigned)
	assertHours(t, "10", result.Surplus)
	assertHours(t, "6", result.HoursPerDay)
	assert.Equal(t, 0, result.CurrentUtilization)
	assert.Equal(t, 75, result.NewUtilization)
	assert.Equal(t, 75, result.UtilizationIncrease)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestNonWorkingDaysHaveNoCapacity(t *testing.T) {
	// GIVEN: An exception and a task touching the weekend
	// WHEN: Querying Saturday and Sunday
	// THEN: Capacity and availability are zero regardless

	engine, mem := newTestEngine(t)
	saveException(t, mem, "ex-sat", "alice", saturday, "6", capacity.ExceptionOther)
	saveTask(t, mem, "task-1", "10", friday, sunday, capacity.StatusTodo, "alice")

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", saturday, sunday)
	require.NoError(t, err)

	for _, day := range summary.Daily {
		assertHours(t, "0", day.Capacity, day.Date.String())
		assertHours(t, "0", day.Available, day.Date.String())
	}
	assert.Equal(t, 0, summary.UtilizationPercentage)
}

func TestNoTasksMeansAvailableEqualsCapacity(t *testing.T) {
	engine, mem := newTestEngine(t)
	saveException(t, mem, "ex-1", "alice", wednesday, "3", capacity.ExceptionSickLeave)

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, sunday)
	require.NoError(t, err)

	for _, day := range summary.Daily {
		assertHours(t, "0", day.Allocated)
		assert.True(t, day.Available.Equal(day.Capacity), day.Date.String())
	}
	assertHours(t, "35", summary.TotalCapacity)
}

func TestTotalsIdentity(t *testing.T) {
	// GIVEN: Uneven allocations (10h over three days leaves 3.33/day)
	// WHEN: Summing the week
	// THEN: available = capacity - allocated exactly at 2 decimals

	engine, mem := newTestEngine(t)
	saveTask(t, mem, "task-1", "10", monday, wednesday, capacity.StatusInProgress, "alice")
	saveTask(t, mem, "task-2", "7", tuesday, friday, capacity.StatusBlocked, "alice", "bob")

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, friday)
	require.NoError(t, err)

	assert.True(t, summary.TotalAvailable.Equal(summary.TotalCapacity.Sub(summary.TotalAllocated)),
		"available=%s capacity=%s allocated=%s", summary.TotalAvailable, summary.TotalCapacity, summary.TotalAllocated)
	for i := 1; i < len(summary.Daily); i++ {
		assert.True(t, summary.Daily[i-1].Date.Before(summary.Daily[i].Date), "breakdown is date-ascending")
	}
}

func TestDoneTasksAllocateNothing(t *testing.T) {
	engine, mem := newTestEngine(t)
	saveTask(t, mem, "task-1", "40", monday, friday, capacity.StatusDone, "alice")

	allocated, err := engine.AllocatedHours(context.Background(), "alice", tuesday)
	require.NoError(t, err)
	assertHours(t, "0", allocated)
}

func TestDistributionLaw(t *testing.T) {
	// GIVEN: Uneven availability (4.67h Mon-Wed, 8h Thu-Fri)
	// WHEN: Asking for several feasible amounts
	// THEN: Each plan sums to the request and never exceeds a day's availability

	engine, mem := newTestEngine(t)
	saveTask(t, mem, "task-1", "10", monday, wednesday, capacity.StatusInProgress, "alice")

	for _, need := range []string{"0.5", "7", "13.33", "25", "30", "30.01"} {
		result := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours(need))
		require.True(t, result.CanHandle, need)
		require.NotNil(t, result.Suggested, need)

		assert.True(t, result.Suggested.Planned().Sub(hours(need)).Abs().LessThanOrEqual(hours("0.01")),
			"need %s planned %s", need, result.Suggested.Planned())
		for _, d := range result.Suggested.Days {
			assert.True(t, d.PlannedHours.LessThanOrEqual(d.Available), "need %s day %s", need, d.Date)
		}
	}
}

func TestMonotonicity(t *testing.T) {
	engine, mem := newTestEngine(t)
	saveTask(t, mem, "task-1", "12", monday, friday, capacity.StatusTodo, "alice")

	prev := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours("1"))
	for _, need := range []string{"5", "10", "27.5", "28", "40", "80"} {
		next := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours(need))
		assert.GreaterOrEqual(t, next.NewUtilization, prev.NewUtilization, need)
		assert.True(t, next.Surplus.LessThanOrEqual(prev.Surplus), need)
		prev = next
	}
}

// =============================================================================
// PROFILE CACHE
// =============================================================================

func TestProfileLookupIsCachedWithinTTL(t *testing.T) {
	// GIVEN: A counting store behind the engine
	// WHEN: Reading the profile twice inside the TTL
	// THEN: The store is read once and both reads are identical

	counting := &countingStore{Memory: store.NewMemory()}
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	engine := capacity.NewEngine(capacity.StoresFrom(counting), capacity.WithClock(clock.Now))
	ctx := context.Background()

	first, err := engine.Profile(ctx, "alice")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := engine.Profile(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counting.profileReads.Load())

	// WHEN: The entry ages past the TTL
	// THEN: The store is read again
	clock.Advance(90 * time.Second)
	_, err = engine.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), counting.profileReads.Load())
}

func TestProfileCreatedWithDefaults(t *testing.T) {
	engine, mem := newTestEngine(t)

	profile, err := engine.Profile(context.Background(), "newcomer")
	require.NoError(t, err)

	assertHours(t, "8", profile.DailyCapacityHours)
	assertHours(t, "40", profile.WeeklyCapacityHours)
	assert.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, profile.WorkingWeekdays.Names())

	stored, err := mem.GetProfile(context.Background(), "newcomer")
	require.NoError(t, err)
	require.NotNil(t, stored, "default profile is persisted")
}

func TestConcurrentFirstLookupsCreateOneProfile(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Profile(ctx, "racer")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	stored, err := mem.GetProfile(ctx, "racer")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestClearCapacityCacheReadsUpdatedProfile(t *testing.T) {
	// GIVEN: A cached profile that is then changed in the store
	// WHEN: Reading before and after clearing the cache
	// THEN: The stale value is served until the entry is cleared

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Profile(ctx, "alice")
	require.NoError(t, err)

	updated := capacity.DefaultProfile("alice")
	updated.DailyCapacityHours = hours("6")
	require.NoError(t, mem.SaveProfile(ctx, updated))

	cached, err := engine.Profile(ctx, "alice")
	require.NoError(t, err)
	assertHours(t, "8", cached.DailyCapacityHours)

	engine.ClearCapacityCache("alice")
	fresh, err := engine.Profile(ctx, "alice")
	require.NoError(t, err)
	assertHours(t, "6", fresh.DailyCapacityHours)

	updated.DailyCapacityHours = hours("4")
	require.NoError(t, mem.SaveProfile(ctx, updated))
	engine.ClearCapacityCache()
	fresh, err = engine.Profile(ctx, "alice")
	require.NoError(t, err)
	assertHours(t, "4", fresh.DailyCapacityHours)
}

func TestCustomWorkWeekAndDailyHours(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveProfile(ctx, capacity.Profile{
		UserID:              "part-timer",
		DailyCapacityHours:  hours("6.5"),
		WeeklyCapacityHours: hours("19.5"),
		WorkingWeekdays:     calendar.WeekdaySet{time.Monday, time.Wednesday, time.Saturday},
	}))

	summary, err := engine.GetUserAvailableHours(ctx, "part-timer", monday, sunday)
	require.NoError(t, err)
	assertHours(t, "19.5", summary.TotalCapacity)
	assertHours(t, "6.5", summary.Daily[5].Capacity, "saturday is worked")
	assertHours(t, "0", summary.Daily[4].Capacity, "friday is not")
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

func TestExceptionConflictPolicies(t *testing.T) {
	seed := func(mem *store.Memory) {
		mem.ImportExceptions(context.Background(),
			capacity.WorkException{ID: "ex-1", UserID: "alice", Date: monday, AvailableHours: hours("2"), Type: capacity.ExceptionHoliday},
			capacity.WorkException{ID: "ex-2", UserID: "alice", Date: monday, AvailableHours: hours("5"), Type: capacity.ExceptionOther},
		)
	}

	t.Run("first wins by default", func(t *testing.T) {
		engine, mem := newTestEngine(t)
		seed(mem)

		summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, monday)
		require.NoError(t, err)
		assertHours(t, "2", summary.TotalCapacity)

		daily, err := engine.DailyCapacity(context.Background(), "alice", monday)
		require.NoError(t, err)
		assertHours(t, "2", daily)
	})

	t.Run("last wins", func(t *testing.T) {
		engine, mem := newTestEngine(t, capacity.WithConflictPolicy(capacity.ConflictLastWins))
		seed(mem)

		summary, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, monday)
		require.NoError(t, err)
		assertHours(t, "5", summary.TotalCapacity)
	})

	t.Run("reject", func(t *testing.T) {
		engine, mem := newTestEngine(t, capacity.WithConflictPolicy(capacity.ConflictReject))
		seed(mem)

		_, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, monday)
		var dupErr *capacity.DuplicateExceptionError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, capacity.ExceptionID("ex-1"), dupErr.First)
		assert.Equal(t, capacity.ExceptionID("ex-2"), dupErr.Second)

		result := engine.CanUserHandleTask(context.Background(), "alice", monday, monday, hours("1"))
		assert.Equal(t, capacity.VerdictLookupFailed, result.Verdict)
		assert.False(t, result.CanHandle)
	})
}

func TestRecurringExceptionAppliesUnlessOverridden(t *testing.T) {
	// GIVEN: A yearly Christmas holiday with 0 hours
	// WHEN: Querying Christmas week, with and without a stored override
	// THEN: The recurring day removes capacity; a stored exception wins

	christmas, err := calendar.NewRecurrence("FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25", calendar.Date{})
	require.NoError(t, err)
	holiday := capacity.RecurringException{
		Name:           "christmas",
		Recurrence:     christmas,
		AvailableHours: decimal.Zero,
		Type:           capacity.ExceptionHoliday,
	}

	engine, mem := newTestEngine(t, capacity.WithRecurringExceptions(holiday))
	start := calendar.NewDate(2025, time.December, 22)
	end := calendar.NewDate(2025, time.December, 26)

	summary, err := engine.GetUserAvailableHours(context.Background(), "alice", start, end)
	require.NoError(t, err)
	assertHours(t, "32", summary.TotalCapacity)
	assert.Equal(t, capacity.ExceptionHoliday, summary.Daily[3].ExceptionType)

	saveException(t, mem, "on-call", "bob", calendar.NewDate(2025, time.December, 25), "4", capacity.ExceptionOther)
	summary, err = engine.GetUserAvailableHours(context.Background(), "bob", start, end)
	require.NoError(t, err)
	assertHours(t, "36", summary.TotalCapacity)
}

// =============================================================================
// VALIDATION & FAILURES
// =============================================================================

func TestAvailabilityRejectsInvalidInput(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.GetUserAvailableHours(ctx, "alice", friday, monday)
	assert.ErrorIs(t, err, capacity.ErrInvalidRange)
	assert.True(t, capacity.IsValidation(err))

	_, err = engine.GetUserAvailableHours(ctx, "", monday, friday)
	assert.ErrorIs(t, err, capacity.ErrMissingUser)

	_, err = engine.GetUserAvailableHours(ctx, "alice", calendar.Date{}, friday)
	assert.ErrorIs(t, err, capacity.ErrMissingDate)
}

func TestCanHandleConvertsValidationIntoVerdict(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		user  capacity.UserID
		start calendar.Date
		end   calendar.Date
		hours string
	}{
		{"missing user", "", monday, friday, "8"},
		{"start after end", "alice", friday, monday, "8"},
		{"zero hours", "alice", monday, friday, "0"},
		{"negative hours", "alice", monday, friday, "-3"},
		{"missing start", "alice", calendar.Date{}, friday, "8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.CanUserHandleTask(ctx, tc.user, tc.start, tc.end, hours(tc.hours))

			assert.Equal(t, capacity.VerdictInvalidInput, result.Verdict)
			assert.False(t, result.CanHandle)
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, tc.user, result.UserID)
			assert.Nil(t, result.Suggested)
		})
	}
}

type failingTasks struct{ *store.Memory }

func (failingTasks) ActiveTasksForAssignee(context.Context, capacity.UserID, time.Time, time.Time) ([]capacity.TaskAssignment, error) {
	return nil, errors.New("connection refused")
}

func TestCanHandleReportsLookupFailure(t *testing.T) {
	mem := store.NewMemory()
	engine := capacity.NewEngine(capacity.Stores{Profiles: mem, Exceptions: mem, Tasks: failingTasks{mem}})

	result := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours("8"))

	assert.Equal(t, capacity.VerdictLookupFailed, result.Verdict)
	assert.Contains(t, result.Error, "connection refused")

	_, err := engine.GetUserAvailableHours(context.Background(), "alice", monday, friday)
	assert.Error(t, err)
	assert.False(t, capacity.IsClientError(err))
}

func TestWeekendOnlyRangeIsInfeasible(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.CanUserHandleTask(context.Background(), "alice", saturday, sunday, hours("1"))

	assert.Equal(t, capacity.VerdictInfeasible, result.Verdict)
	assert.Equal(t, 0, result.WorkingDays)
	assertHours(t, "0", result.HoursPerDay)
	assert.Equal(t, 0, result.NewUtilization)
}

func TestHoursNeededIsComparedUnrounded(t *testing.T) {
	// GIVEN: 40h free Monday to Friday
	// WHEN: Asking for a fraction of a cent more than that
	// THEN: Infeasible, with the exact shortfall as surplus

	engine, _ := newTestEngine(t)

	result := engine.CanUserHandleTask(context.Background(), "alice", monday, friday, hours("40.004"))

	assert.False(t, result.CanHandle)
	assert.Equal(t, capacity.VerdictInfeasible, result.Verdict)
	assertHours(t, "40.004", result.HoursNeeded)
	assertHours(t, "-0.004", result.Surplus)
	assert.Nil(t, result.Suggested)
}

func TestSubCentRequests(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// GIVEN: No capacity over a weekend
	// WHEN: Asking for a thousandth of an hour
	// THEN: Still infeasible
	weekend := engine.CanUserHandleTask(ctx, "alice", saturday, sunday, hours("0.001"))
	assert.Equal(t, capacity.VerdictInfeasible, weekend.Verdict)
	assert.False(t, weekend.CanHandle)

	// GIVEN: A free working week
	// WHEN: Asking for less than a cent
	// THEN: The plan books one whole cent instead of nothing
	week := engine.CanUserHandleTask(ctx, "alice", monday, friday, hours("0.004"))
	require.Equal(t, capacity.VerdictFeasibleWithPlan, week.Verdict)
	require.NotNil(t, week.Suggested)
	assertHours(t, "0.01", week.Suggested.Planned())
	assertHours(t, "0", week.Suggested.Unassigned)
	assertHours(t, "0.01", week.Suggested.Days[0].PlannedHours)
}

// =============================================================================
// TEAM
// =============================================================================

func TestTeamEqualSplit(t *testing.T) {
	// GIVEN: alice is free, bob is on vacation all week
	// WHEN: Splitting 40h equally between them
	// THEN: 20h each; alice can, bob cannot, so the team cannot

	engine, mem := newTestEngine(t)
	for i, d := range calendar.Range(monday, friday) {
		saveException(t, mem, "vac-"+string(rune('a'+i)), "bob", d, "0", capacity.ExceptionVacation)
	}

	result, err := engine.CanUsersHandleTask(context.Background(), []capacity.UserID{"alice", "bob"}, monday, friday, hours("40"), "")
	require.NoError(t, err)

	assert.False(t, result.CanAssignToTeam)
	assert.Equal(t, capacity.StrategyEqual, result.Strategy)
	assert.Equal(t, 2, result.TotalUsers)
	assert.Equal(t, 1, result.CapableUsers)
	assert.Equal(t, []capacity.UserID{"bob"}, result.FailedUsers)
	require.Len(t, result.Results, 2)
	assert.Equal(t, capacity.UserID("alice"), result.Results[0].UserID)
	assert.Equal(t, capacity.UserID("bob"), result.Results[1].UserID)
	for _, share := range result.HoursPerUser {
		assertHours(t, "20", share)
	}
}

func TestTeamAllCapable(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.CanUsersHandleTask(context.Background(), []capacity.UserID{"a", "b", "c"}, monday, friday, hours("100"), capacity.StrategyEqual)
	require.NoError(t, err)

	assert.True(t, result.CanAssignToTeam)
	assert.Empty(t, result.FailedUsers)
	assertHours(t, "33.33", result.HoursPerUser[0])
}

func TestTeamSharesAreCheckedUnrounded(t *testing.T) {
	// GIVEN: Three users with 40h each
	// WHEN: Splitting 120.01h equally (40.0033h each)
	// THEN: Nobody can take their share, though it displays as 40

	engine, _ := newTestEngine(t)

	result, err := engine.CanUsersHandleTask(context.Background(), []capacity.UserID{"a", "b", "c"}, monday, friday, hours("120.01"), capacity.StrategyEqual)
	require.NoError(t, err)

	assert.False(t, result.CanAssignToTeam)
	assert.Equal(t, 0, result.CapableUsers)
	assert.Len(t, result.FailedUsers, 3)
	for _, share := range result.HoursPerUser {
		assertHours(t, "40", share)
	}
}

// truncatingSplit drops the last user's share.
type truncatingSplit struct{}

func (truncatingSplit) Name() string { return "truncating" }

func (truncatingSplit) Split(total decimal.Decimal, users []capacity.UserID) []decimal.Decimal {
	shares := capacity.EqualSplit{}.Split(total, users)
	return shares[:len(shares)-1]
}

func TestTeamRejectsMisalignedStrategy(t *testing.T) {
	// GIVEN: A registered strategy returning one share too few
	// WHEN: Running a team check with it
	// THEN: An unsupported strategy error, not a panic

	capacity.RegisterStrategy(truncatingSplit{})
	engine, _ := newTestEngine(t)

	var result *capacity.TeamFeasibilityResult
	var err error
	require.NotPanics(t, func() {
		result, err = engine.CanUsersHandleTask(context.Background(), []capacity.UserID{"a", "b"}, monday, friday, hours("10"), "truncating")
	})
	assert.ErrorIs(t, err, capacity.ErrUnsupportedStrategy)
	assert.Nil(t, result)
}

func TestTeamInvalidMemberDoesNotStopOthers(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.CanUsersHandleTask(context.Background(), []capacity.UserID{"alice", ""}, monday, friday, hours("10"), "equal")
	require.NoError(t, err)

	assert.Equal(t, capacity.VerdictFeasibleWithPlan, result.Results[0].Verdict)
	assert.Equal(t, capacity.VerdictInvalidInput, result.Results[1].Verdict)
	assert.False(t, result.CanAssignToTeam)
}

func TestTeamRejectsBadRequests(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CanUsersHandleTask(ctx, nil, monday, friday, hours("10"), "")
	assert.ErrorIs(t, err, capacity.ErrEmptyTeam)
	assert.True(t, capacity.IsValidation(err))

	_, err = engine.CanUsersHandleTask(ctx, []capacity.UserID{"alice"}, monday, friday, hours("10"), "weighted")
	assert.ErrorIs(t, err, capacity.ErrUnsupportedStrategy)
	assert.True(t, capacity.IsClientError(err))
}

// =============================================================================
// METRICS
// =============================================================================

func TestEngineRecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	engine, _ := newTestEngine(t, capacity.WithMetrics(rec))
	ctx := context.Background()

	engine.CanUserHandleTask(ctx, "alice", monday, friday, hours("50"))
	engine.CanUserHandleTask(ctx, "alice", monday, friday, hours("10"))
	engine.CanUserHandleTask(ctx, "", monday, friday, hours("10"))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.FeasibilityChecks.WithLabelValues("infeasible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.FeasibilityChecks.WithLabelValues("feasible_with_plan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.FeasibilityChecks.WithLabelValues("invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.ProfilesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CacheLookups.WithLabelValues("miss")))
	assert.Greater(t, testutil.ToFloat64(rec.CacheLookups.WithLabelValues("hit")), 0.0)
}
