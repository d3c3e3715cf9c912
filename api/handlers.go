/*
handlers.go - HTTP API handlers for the capacity engine

PURPOSE:
  Exposes the capacity engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and its repositories.

ENDPOINTS:
  Capacity:
    GET    /api/users/{id}/availability?start=&end=  Per-day breakdown
    POST   /api/users/{id}/feasibility               Single-user check
    POST   /api/teams/feasibility                    Shared task check

  Profiles:
    GET    /api/users/{id}/profile    Get (creates defaults on first call)
    PUT    /api/users/{id}/profile    Replace and invalidate cache entry

  Exceptions & tasks:
    GET    /api/users/{id}/exceptions?start=&end=  Effective exceptions
    POST   /api/users/{id}/exceptions              Record an exception
    POST   /api/tasks                              Create or replace a task
    GET    /api/users/{id}/tasks?start=&end=       Active tasks in range

  Admin:
    DELETE /api/cache[?user_id=]      Drop cached profiles

  Scenarios:
    GET    /api/scenarios             List demo scenarios
    POST   /api/scenarios/load        Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown strategy
  - 409: Duplicate exception for a user and date
  - 500: Store failures
  Feasibility endpoints always answer with a verdict body; the status
  is 400 for invalid_input and 500 for lookup_failed.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

// Store is the repository the API writes through. The engine reads the
// same data through capacity.Stores.
type Store interface {
	capacity.Repository
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Engine *capacity.Engine
	Store  Store
	Logger *zap.Logger

	today    func() calendar.Date
	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger disables logging.
func NewHandler(engine *capacity.Engine, store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine:   engine,
		Store:    store,
		Logger:   logger.Named("api"),
		today:    calendar.Today,
		validate: validator.New(),
	}
}

// =============================================================================
// CAPACITY ENDPOINTS
// =============================================================================

// GetAvailability returns the per-day availability breakdown.
// GET /api/users/{id}/availability?start=2025-03-10&end=2025-03-14
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	userID := capacity.UserID(chi.URLParam(r, "id"))
	start, end, err := dateRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	summary, err := h.Engine.GetUserAvailableHours(r.Context(), userID, start, end)
	if err != nil {
		h.writeDomainError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityDTO(summary))
}

// CheckFeasibility answers whether a user can take on more hours.
// POST /api/users/{id}/feasibility
func (h *Handler) CheckFeasibility(w http.ResponseWriter, r *http.Request) {
	var req FeasibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	userID := capacity.UserID(chi.URLParam(r, "id"))
	result := h.Engine.CanUserHandleTask(r.Context(), userID, start, end, decimal.NewFromFloat(req.Hours))
	writeJSON(w, verdictStatus(result.Verdict), toFeasibilityDTO(result))
}

// CheckTeamFeasibility splits a task across several users and checks each.
// POST /api/teams/feasibility
func (h *Handler) CheckTeamFeasibility(w http.ResponseWriter, r *http.Request) {
	var req TeamFeasibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	result, err := h.Engine.CanUsersHandleTask(r.Context(), toUserIDs(req.UserIDs), start, end,
		decimal.NewFromFloat(req.TotalHours), req.Strategy)
	if err != nil {
		h.writeDomainError(w, "Failed to check team feasibility", err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamFeasibilityDTO(result))
}

// =============================================================================
// PROFILE ENDPOINTS
// =============================================================================

// GetProfile returns the user's capacity profile, creating defaults if absent.
// GET /api/users/{id}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := capacity.UserID(chi.URLParam(r, "id"))
	profile, err := h.Engine.Profile(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// UpdateProfile replaces the user's profile and drops its cache entry.
// PUT /api/users/{id}/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}
	weekdays, err := calendar.ParseWeekdays(req.WorkingWeekdays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid working weekdays", err)
		return
	}

	ctx := r.Context()
	userID := capacity.UserID(chi.URLParam(r, "id"))
	profile := capacity.Profile{
		UserID:              userID,
		DailyCapacityHours:  decimal.NewFromFloat(req.DailyCapacityHours),
		WeeklyCapacityHours: decimal.NewFromFloat(req.WeeklyCapacityHours),
		WorkingWeekdays:     weekdays,
	}
	if err := h.Store.SaveProfile(ctx, profile); err != nil {
		h.writeDomainError(w, "Failed to save profile", err)
		return
	}
	h.Engine.ClearCapacityCache(userID)

	saved, err := h.Engine.Profile(ctx, userID)
	if err != nil {
		h.writeDomainError(w, "Failed to reload profile", err)
		return
	}
	h.Logger.Info("profile updated",
		zap.String("user_id", string(userID)),
		zap.String("daily_hours", saved.DailyCapacityHours.String()),
		zap.Stringer("weekdays", saved.WorkingWeekdays))
	writeJSON(w, http.StatusOK, toProfileDTO(saved))
}

// =============================================================================
// EXCEPTION ENDPOINTS
// =============================================================================

// ListExceptions returns the exception governing each day in range, after
// recurring rules and the conflict policy are applied.
// GET /api/users/{id}/exceptions?start=&end=
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	userID := capacity.UserID(chi.URLParam(r, "id"))
	start, end, err := dateRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	set, err := h.Engine.Exceptions(r.Context(), userID, start, end)
	if err != nil {
		h.writeDomainError(w, "Failed to list exceptions", err)
		return
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dtos := make([]ExceptionDTO, len(keys))
	for i, k := range keys {
		dtos[i] = toExceptionDTO(set[k])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateException records a capacity override for one day.
// POST /api/users/{id}/exceptions
func (h *Handler) CreateException(w http.ResponseWriter, r *http.Request) {
	var req CreateExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	ex := capacity.WorkException{
		ID:             capacity.ExceptionID(uuid.NewString()),
		UserID:         capacity.UserID(chi.URLParam(r, "id")),
		Date:           date,
		AvailableHours: decimal.NewFromFloat(req.AvailableHours),
		Type:           capacity.ExceptionType(req.Type),
		Reason:         req.Reason,
	}
	if err := capacity.ValidateException(ex); err != nil {
		h.writeDomainError(w, "Invalid exception", err)
		return
	}
	if err := h.Store.SaveException(r.Context(), ex); err != nil {
		h.writeDomainError(w, "Failed to save exception", err)
		return
	}

	h.Logger.Info("exception recorded",
		zap.String("user_id", string(ex.UserID)),
		zap.Stringer("date", ex.Date),
		zap.String("type", string(ex.Type)))
	writeJSON(w, http.StatusCreated, toExceptionDTO(ex))
}

// =============================================================================
// TASK ENDPOINTS
// =============================================================================

// CreateTask inserts or replaces a task assignment.
// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, due, err := parseDateRange(req.StartDate, req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task dates", err)
		return
	}

	task := capacity.TaskAssignment{
		ID:             capacity.TaskID(req.ID),
		Title:          req.Title,
		Assignees:      toUserIDs(req.Assignees),
		StartDate:      start,
		DueDate:        due,
		EstimatedHours: decimal.NewFromFloat(req.EstimatedHours),
		Status:         capacity.TaskStatus(req.Status),
	}
	if task.ID == "" {
		task.ID = capacity.TaskID(uuid.NewString())
	}
	if task.Status == "" {
		task.Status = capacity.StatusTodo
	}
	if err := capacity.ValidateTask(task); err != nil {
		h.writeDomainError(w, "Invalid task", err)
		return
	}
	if err := h.Store.SaveTask(r.Context(), task); err != nil {
		h.writeDomainError(w, "Failed to save task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

// ListTasks returns the user's non-done tasks overlapping the range.
// GET /api/users/{id}/tasks?start=&end=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := capacity.UserID(chi.URLParam(r, "id"))
	start, end, err := dateRangeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	tasks, err := h.Store.ActiveTasksForAssignee(r.Context(), userID, start.Start(), end.End())
	if err != nil {
		h.writeDomainError(w, "Failed to list tasks", err)
		return
	}
	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// ClearCache drops cached profiles, for the given user_id values or all.
// DELETE /api/cache?user_id=alice&user_id=bob
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	users := toUserIDs(r.URL.Query()["user_id"])
	h.Engine.ClearCapacityCache(users...)
	w.WriteHeader(http.StatusNoContent)
}

// Health pings the store.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	switch {
	case errors.Is(err, capacity.ErrDuplicateException):
		resp.Code = "duplicate_exception"
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, capacity.ErrUnsupportedStrategy):
		resp.Code = "unsupported_strategy"
		writeJSON(w, http.StatusBadRequest, resp)
	case capacity.IsClientError(err):
		resp.Code = "invalid_input"
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func verdictStatus(v capacity.Verdict) int {
	switch v {
	case capacity.VerdictInvalidInput:
		return http.StatusBadRequest
	case capacity.VerdictLookupFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func dateRangeQuery(r *http.Request) (calendar.Date, calendar.Date, error) {
	q := r.URL.Query()
	return parseDateRange(q.Get("start"), q.Get("end"))
}

// parseDateRange parses both ends. Ordering is left to the engine so that a
// reversed range surfaces as its usual validation error.
func parseDateRange(start, end string) (calendar.Date, calendar.Date, error) {
	if start == "" || end == "" {
		return calendar.Date{}, calendar.Date{}, capacity.ErrMissingDate
	}
	s, err := calendar.ParseDate(start)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, fmt.Errorf("start: %w", err)
	}
	e, err := calendar.ParseDate(end)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, fmt.Errorf("end: %w", err)
	}
	return s, e, nil
}
