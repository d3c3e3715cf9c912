/*
errors.go - Centralized error types for the capacity engine

ERROR CATEGORIES:
  1. Validation errors - missing user, missing dates, start after end,
     non-positive hours. Building blocks return them; the planner converts
     them into an invalid_input verdict instead.
  2. Conflict errors - two exceptions governing the same (user, date)
  3. Extension errors - unknown team distribution strategy

NOT-FOUND IS NOT AN ERROR:
  A missing profile is created with defaults, and missing exceptions or
  tasks count as zero. No NotFound error exists on purpose.

USAGE:
  if capacity.IsValidation(err) { ... 400 ... }
  if errors.Is(err, capacity.ErrInvalidRange) { ... }
*/
package capacity

import (
	"errors"
	"fmt"

	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrMissingUser         = errors.New("user id is required")
	ErrMissingDate         = errors.New("start and end dates are required")
	ErrInvalidRange        = errors.New("invalid range: start after end")
	ErrNonPositiveHours    = errors.New("hours must be greater than zero")
	ErrInvalidHours        = errors.New("hours must be between 0 and 24")
	ErrEmptyTeam           = errors.New("at least one user id is required")
	ErrInvalidTask         = errors.New("invalid task assignment")
	ErrDuplicateException  = errors.New("duplicate work exception for date")
	ErrUnsupportedStrategy = errors.New("unsupported distribution strategy")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field   string
	Message string
	Err     error // one of the sentinels above
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// DuplicateExceptionError reports two exceptions for the same user and day.
type DuplicateExceptionError struct {
	UserID UserID
	Date   calendar.Date
	First  ExceptionID
	Second ExceptionID
}

func (e *DuplicateExceptionError) Error() string {
	return fmt.Sprintf("duplicate work exception for %s on %s (%s, %s)",
		e.UserID, e.Date, e.First, e.Second)
}

func (e *DuplicateExceptionError) Unwrap() error { return ErrDuplicateException }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrDuplicateException) ||
		errors.Is(err, ErrUnsupportedStrategy) ||
		errors.Is(err, ErrInvalidTask)
}
