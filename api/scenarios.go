/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates profiles, exceptions and tasks
	for the working week after the current one, so the data always lies
	in the future relative to today.

AVAILABLE SCENARIOS:

	balanced-team: Two developers sharing a task, one with room to spare
	vacation-week: A team member away for half the week
	part-time:     A 6h/day, three-day-week profile
	overbooked:    More committed work than the week can hold

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Drop every cached profile
 3. Save profiles that differ from the defaults
 4. Save exceptions and tasks

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "vacation-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description, users
 2. Create loader function: loadXxxScenario(ctx, week)
 3. Add the loader to scenarioLoaders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: HTTP handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "balanced-team",
		Name:        "Balanced Team",
		Description: "Alice and Bob share a 40h task; Carol has a small task and plenty of slack",
		Users:       []string{"alice", "bob", "carol"},
	},
	{
		ID:          "vacation-week",
		Name:        "Vacation Week",
		Description: "Bob is on vacation Wednesday to Friday while sharing a task with Alice",
		Users:       []string{"alice", "bob"},
	},
	{
		ID:          "part-time",
		Name:        "Part-Time Contributor",
		Description: "Dana works 6h on Monday, Wednesday and Friday only",
		Users:       []string{"dana"},
	},
	{
		ID:          "overbooked",
		Name:        "Overbooked Engineer",
		Description: "Erin carries 90h of tasks in a 40h week",
		Users:       []string{"erin"},
	},
}

type scenarioLoader func(h *Handler, ctx context.Context, week calendar.Date) error

var scenarioLoaders = map[string]scenarioLoader{
	"balanced-team": (*Handler).loadBalancedTeamScenario,
	"vacation-week": (*Handler).loadVacationWeekScenario,
	"part-time":     (*Handler).loadPartTimeScenario,
	"overbooked":    (*Handler).loadOverbookedScenario,
}

// ListScenarios returns all available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scenario, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q not found", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Engine.ClearCapacityCache()
	h.currentScenario = ""

	week := upcomingMonday(h.today())
	if err := scenarioLoaders[scenario.ID](h, ctx, week); err != nil {
		h.Logger.Error("scenario load failed", zap.String("scenario", scenario.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = scenario.ID

	h.Logger.Info("scenario loaded", zap.String("scenario", scenario.ID), zap.Stringer("week", week))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"scenario":   scenario,
		"week_start": week.String(),
	})
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// upcomingMonday returns the Monday after the week containing d.
func upcomingMonday(d calendar.Date) calendar.Date {
	sinceMonday := (int(d.Weekday()) + 6) % 7
	return d.AddDays(7 - sinceMonday)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBalancedTeamScenario(ctx context.Context, week calendar.Date) error {
	if err := h.seedTask(ctx, "api-redesign", "API redesign", week, week.AddDays(4), 40, "alice", "bob"); err != nil {
		return err
	}
	return h.seedTask(ctx, "docs-refresh", "Docs refresh", week, week.AddDays(2), 12, "carol")
}

func (h *Handler) loadVacationWeekScenario(ctx context.Context, week calendar.Date) error {
	for offset := 2; offset <= 4; offset++ {
		if err := h.seedException(ctx, "bob", week.AddDays(offset), 0, capacity.ExceptionVacation, "Family trip"); err != nil {
			return err
		}
	}
	if err := h.seedException(ctx, "alice", week, 4, capacity.ExceptionOther, "Half-day training"); err != nil {
		return err
	}
	return h.seedTask(ctx, "billing-migration", "Billing migration", week, week.AddDays(4), 30, "alice", "bob")
}

func (h *Handler) loadPartTimeScenario(ctx context.Context, week calendar.Date) error {
	err := h.Store.SaveProfile(ctx, capacity.Profile{
		UserID:              "dana",
		DailyCapacityHours:  decimal.NewFromInt(6),
		WeeklyCapacityHours: decimal.NewFromInt(18),
		WorkingWeekdays:     calendar.WeekdaySet{time.Monday, time.Wednesday, time.Friday},
	})
	if err != nil {
		return fmt.Errorf("save profile dana: %w", err)
	}
	return h.seedTask(ctx, "design-review", "Design review", week, week.AddDays(4), 10, "dana")
}

func (h *Handler) loadOverbookedScenario(ctx context.Context, week calendar.Date) error {
	if err := h.seedTask(ctx, "incident-followups", "Incident follow-ups", week, week.AddDays(4), 60, "erin"); err != nil {
		return err
	}
	return h.seedTask(ctx, "quarterly-report", "Quarterly report", week, week.AddDays(2), 30, "erin")
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedTask(ctx context.Context, id, title string, start, due calendar.Date, estimate int64, assignees ...capacity.UserID) error {
	task := capacity.TaskAssignment{
		ID:             capacity.TaskID(id),
		Title:          title,
		Assignees:      assignees,
		StartDate:      start,
		DueDate:        due,
		EstimatedHours: decimal.NewFromInt(estimate),
		Status:         capacity.StatusInProgress,
	}
	if err := h.Store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task %s: %w", id, err)
	}
	return nil
}

func (h *Handler) seedException(ctx context.Context, userID capacity.UserID, date calendar.Date, available int64, kind capacity.ExceptionType, reason string) error {
	ex := capacity.WorkException{
		ID:             capacity.ExceptionID(fmt.Sprintf("%s-%s", userID, date)),
		UserID:         userID,
		Date:           date,
		AvailableHours: decimal.NewFromInt(available),
		Type:           kind,
		Reason:         reason,
	}
	if err := h.Store.SaveException(ctx, ex); err != nil {
		return fmt.Errorf("save exception %s: %w", ex.ID, err)
	}
	return nil
}
