package capacity

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/calendar"
)

var validate = validator.New()

// rangeRules mirrors a (user, start, end) query for struct validation.
// Dates are carried as time.Time so required/gtefield apply.
type rangeRules struct {
	UserID string    `validate:"required"`
	Start  time.Time `validate:"required"`
	End    time.Time `validate:"required,gtefield=Start"`
}

type hoursRules struct {
	HoursNeeded float64 `validate:"gt=0"`
}

type exceptionRules struct {
	UserID         string    `validate:"required"`
	Date           time.Time `validate:"required"`
	AvailableHours float64   `validate:"gte=0,lte=24"`
}

type taskRules struct {
	ID             string    `validate:"required"`
	Assignees      []string  `validate:"required,min=1,dive,required"`
	StartDate      time.Time `validate:"required"`
	DueDate        time.Time `validate:"required,gtfield=StartDate"`
	EstimatedHours float64   `validate:"gte=0"`
}

// validateRange checks a user id and an inclusive date range.
func validateRange(userID UserID, start, end calendar.Date) error {
	return toValidationError(validate.Struct(rangeRules{
		UserID: string(userID),
		Start:  start.Time(),
		End:    end.Time(),
	}))
}

func validateHours(hours decimal.Decimal) error {
	return toValidationError(validate.Struct(hoursRules{HoursNeeded: hours.InexactFloat64()}))
}

// ValidateException checks an exception before it is stored.
func ValidateException(e WorkException) error {
	if err := toValidationError(validate.Struct(exceptionRules{
		UserID:         string(e.UserID),
		Date:           e.Date.Time(),
		AvailableHours: e.AvailableHours.InexactFloat64(),
	})); err != nil {
		return err
	}
	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Message: "unknown exception type " + string(e.Type), Err: ErrInvalidTask}
	}
	return nil
}

// ValidateTask checks a task assignment before it is stored.
// DueDate must be strictly after StartDate.
func ValidateTask(t TaskAssignment) error {
	assignees := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees[i] = string(a)
	}
	return toValidationError(validate.Struct(taskRules{
		ID:             string(t.ID),
		Assignees:      assignees,
		StartDate:      t.StartDate.Time(),
		DueDate:        t.DueDate.Time(),
		EstimatedHours: t.EstimatedHours.InexactFloat64(),
	}))
}

// toValidationError maps the first validator failure onto a *ValidationError
// wrapping the matching sentinel.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	switch fe.StructField() {
	case "UserID":
		return newValidationError("user_id", ErrMissingUser)
	case "Start", "End", "Date":
		if fe.Tag() == "gtefield" {
			return newValidationError("end", ErrInvalidRange)
		}
		return newValidationError(fieldName(fe.StructField()), ErrMissingDate)
	case "HoursNeeded":
		return newValidationError("hours", ErrNonPositiveHours)
	case "AvailableHours":
		return newValidationError("available_hours", ErrInvalidHours)
	default:
		return &ValidationError{Field: fieldName(fe.StructField()), Message: fe.Error(), Err: ErrInvalidTask}
	}
}

func fieldName(structField string) string {
	switch structField {
	case "Start":
		return "start"
	case "End":
		return "end"
	case "Date":
		return "date"
	case "StartDate":
		return "start_date"
	case "DueDate":
		return "due_date"
	case "EstimatedHours":
		return "estimated_hours"
	case "Assignees":
		return "assignees"
	case "ID":
		return "id"
	}
	return structField
}
