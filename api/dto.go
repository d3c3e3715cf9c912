/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged over HTTP. Domain types keep hours as
  decimal.Decimal; DTOs expose them as float64 so clients can use plain
  JSON numbers. Dates travel as ISO strings (YYYY-MM-DD).

CONVENTIONS:
  - Request DTOs end in Request, response DTOs end in DTO
  - Optional fields use omitempty
  - Conversion helpers live at the bottom of this file
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// AVAILABILITY
// =============================================================================

type DayAvailabilityDTO struct {
	Date          string  `json:"date"`
	DayName       string  `json:"day_name"`
	Capacity      float64 `json:"capacity"`
	Allocated     float64 `json:"allocated"`
	Available     float64 `json:"available"`
	ExceptionType string  `json:"exception_type,omitempty"`
}

type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityDTO struct {
	UserID                string               `json:"user_id"`
	Period                PeriodDTO            `json:"period"`
	TotalCapacity         float64              `json:"total_capacity"`
	TotalAllocated        float64              `json:"total_allocated"`
	TotalAvailable        float64              `json:"total_available"`
	UtilizationPercentage int                  `json:"utilization_percentage"`
	Daily                 []DayAvailabilityDTO `json:"daily"`
}

// =============================================================================
// FEASIBILITY
// =============================================================================

type FeasibilityRequest struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Hours float64 `json:"hours"`
}

type PlannedDayDTO struct {
	Date         string  `json:"date"`
	DayName      string  `json:"day_name"`
	PlannedHours float64 `json:"planned_hours"`
	Available    float64 `json:"available"`
}

type DistributionDTO struct {
	Days       []PlannedDayDTO `json:"days"`
	Total      float64         `json:"total"`
	Unassigned float64         `json:"unassigned"`
}

type FeasibilityDTO struct {
	Verdict   string `json:"verdict"`
	CanHandle bool   `json:"can_handle"`
	UserID    string `json:"user_id"`
	Error     string `json:"error,omitempty"`

	// Populated only when the check ran.
	Period              *PeriodDTO           `json:"period,omitempty"`
	WorkingDays         int                  `json:"working_days"`
	HoursPerDay         float64              `json:"hours_per_day"`
	HoursNeeded         float64              `json:"hours_needed"`
	TotalCapacity       float64              `json:"total_capacity"`
	TotalAllocated      float64              `json:"total_allocated"`
	TotalAvailable      float64              `json:"total_available"`
	Surplus             float64              `json:"surplus"`
	CurrentUtilization  int                  `json:"current_utilization"`
	NewUtilization      int                  `json:"new_utilization"`
	UtilizationIncrease int                  `json:"utilization_increase"`
	SuggestedAllocation *DistributionDTO     `json:"suggested_allocation,omitempty"`
	Daily               []DayAvailabilityDTO `json:"daily,omitempty"`
}

type TeamFeasibilityRequest struct {
	UserIDs    []string `json:"user_ids"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	TotalHours float64  `json:"total_hours"`
	Strategy   string   `json:"strategy,omitempty"`
}

type TeamMemberDTO struct {
	UserID string         `json:"user_id"`
	Hours  float64        `json:"hours"`
	Result FeasibilityDTO `json:"result"`
}

type TeamFeasibilityDTO struct {
	CanAssignToTeam bool            `json:"can_assign_to_team"`
	Strategy        string          `json:"strategy"`
	Members         []TeamMemberDTO `json:"members"`
	FailedUsers     []string        `json:"failed_users"`
	TotalUsers      int             `json:"total_users"`
	CapableUsers    int             `json:"capable_users"`
}

// =============================================================================
// PROFILES
// =============================================================================

type ProfileDTO struct {
	UserID              string   `json:"user_id"`
	DailyCapacityHours  float64  `json:"daily_capacity_hours"`
	WeeklyCapacityHours float64  `json:"weekly_capacity_hours"`
	WorkingWeekdays     []string `json:"working_weekdays"`
	CreatedAt           string   `json:"created_at,omitempty"`
	UpdatedAt           string   `json:"updated_at,omitempty"`
}

type UpdateProfileRequest struct {
	DailyCapacityHours  float64  `json:"daily_capacity_hours" validate:"gt=0,lte=24"`
	WeeklyCapacityHours float64  `json:"weekly_capacity_hours" validate:"gte=0,lte=168"`
	WorkingWeekdays     []string `json:"working_weekdays" validate:"required,min=1,max=7"`
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

type ExceptionDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Date           string  `json:"date"`
	AvailableHours float64 `json:"available_hours"`
	Type           string  `json:"type"`
	Reason         string  `json:"reason,omitempty"`
}

type CreateExceptionRequest struct {
	Date           string  `json:"date"`
	AvailableHours float64 `json:"available_hours"`
	Type           string  `json:"type"`
	Reason         string  `json:"reason,omitempty"`
}

// =============================================================================
// TASKS
// =============================================================================

type TaskDTO struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Assignees      []string `json:"assignees"`
	StartDate      string   `json:"start_date"`
	DueDate        string   `json:"due_date"`
	EstimatedHours float64  `json:"estimated_hours"`
	Status         string   `json:"status"`
}

type CreateTaskRequest struct {
	ID             string   `json:"id,omitempty"` // generated when empty
	Title          string   `json:"title"`
	Assignees      []string `json:"assignees"`
	StartDate      string   `json:"start_date"`
	DueDate        string   `json:"due_date"`
	EstimatedHours float64  `json:"estimated_hours"`
	Status         string   `json:"status,omitempty"` // defaults to todo
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Users       []string `json:"users,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func hours(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toPeriodDTO(p calendar.Period) PeriodDTO {
	return PeriodDTO{Start: p.Start.String(), End: p.End.String()}
}

func toDayDTOs(days []capacity.DayAvailability) []DayAvailabilityDTO {
	dtos := make([]DayAvailabilityDTO, len(days))
	for i, d := range days {
		dtos[i] = DayAvailabilityDTO{
			Date:          d.Date.String(),
			DayName:       d.DayName,
			Capacity:      hours(d.Capacity),
			Allocated:     hours(d.Allocated),
			Available:     hours(d.Available),
			ExceptionType: string(d.ExceptionType),
		}
	}
	return dtos
}

func toAvailabilityDTO(s *capacity.AvailabilitySummary) AvailabilityDTO {
	return AvailabilityDTO{
		UserID:                string(s.UserID),
		Period:                toPeriodDTO(s.Period),
		TotalCapacity:         hours(s.TotalCapacity),
		TotalAllocated:        hours(s.TotalAllocated),
		TotalAvailable:        hours(s.TotalAvailable),
		UtilizationPercentage: s.UtilizationPercentage,
		Daily:                 toDayDTOs(s.Daily),
	}
}

func toDistributionDTO(p *capacity.DistributionPlan) *DistributionDTO {
	if p == nil {
		return nil
	}
	days := make([]PlannedDayDTO, len(p.Days))
	for i, d := range p.Days {
		days[i] = PlannedDayDTO{
			Date:         d.Date.String(),
			DayName:      d.DayName,
			PlannedHours: hours(d.PlannedHours),
			Available:    hours(d.Available),
		}
	}
	return &DistributionDTO{Days: days, Total: hours(p.Total), Unassigned: hours(p.Unassigned)}
}

func toFeasibilityDTO(r capacity.FeasibilityResult) FeasibilityDTO {
	dto := FeasibilityDTO{
		Verdict:   string(r.Verdict),
		CanHandle: r.CanHandle,
		UserID:    string(r.UserID),
		Error:     r.Error,
	}
	if r.Verdict.Failed() {
		return dto
	}
	period := toPeriodDTO(r.Period)
	dto.Period = &period
	dto.WorkingDays = r.WorkingDays
	dto.HoursPerDay = hours(r.HoursPerDay)
	dto.HoursNeeded = hours(r.HoursNeeded)
	dto.TotalCapacity = hours(r.TotalCapacity)
	dto.TotalAllocated = hours(r.TotalAllocated)
	dto.TotalAvailable = hours(r.TotalAvailable)
	dto.Surplus = hours(r.Surplus)
	dto.CurrentUtilization = r.CurrentUtilization
	dto.NewUtilization = r.NewUtilization
	dto.UtilizationIncrease = r.UtilizationIncrease
	dto.SuggestedAllocation = toDistributionDTO(r.Suggested)
	dto.Daily = toDayDTOs(r.Daily)
	return dto
}

func toTeamFeasibilityDTO(r *capacity.TeamFeasibilityResult) TeamFeasibilityDTO {
	members := make([]TeamMemberDTO, len(r.Results))
	for i, res := range r.Results {
		members[i] = TeamMemberDTO{
			UserID: string(res.UserID),
			Hours:  hours(r.HoursPerUser[i]),
			Result: toFeasibilityDTO(res),
		}
	}
	failed := make([]string, len(r.FailedUsers))
	for i, u := range r.FailedUsers {
		failed[i] = string(u)
	}
	return TeamFeasibilityDTO{
		CanAssignToTeam: r.CanAssignToTeam,
		Strategy:        r.Strategy,
		Members:         members,
		FailedUsers:     failed,
		TotalUsers:      r.TotalUsers,
		CapableUsers:    r.CapableUsers,
	}
}

func toProfileDTO(p capacity.Profile) ProfileDTO {
	dto := ProfileDTO{
		UserID:              string(p.UserID),
		DailyCapacityHours:  hours(p.DailyCapacityHours),
		WeeklyCapacityHours: hours(p.WeeklyCapacityHours),
		WorkingWeekdays:     p.WorkingWeekdays.Names(),
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toExceptionDTO(e capacity.WorkException) ExceptionDTO {
	return ExceptionDTO{
		ID:             string(e.ID),
		UserID:         string(e.UserID),
		Date:           e.Date.String(),
		AvailableHours: hours(e.AvailableHours),
		Type:           string(e.Type),
		Reason:         e.Reason,
	}
}

func toTaskDTO(t capacity.TaskAssignment) TaskDTO {
	assignees := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees[i] = string(a)
	}
	return TaskDTO{
		ID:             string(t.ID),
		Title:          t.Title,
		Assignees:      assignees,
		StartDate:      t.StartDate.String(),
		DueDate:        t.DueDate.String(),
		EstimatedHours: hours(t.EstimatedHours),
		Status:         string(t.Status),
	}
}

func toUserIDs(ids []string) []capacity.UserID {
	out := make([]capacity.UserID, len(ids))
	for i, id := range ids {
		out[i] = capacity.UserID(id)
	}
	return out
}
