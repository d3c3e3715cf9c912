package capacity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/capacity-engine/calendar"
)

// =============================================================================
// CONFLICT POLICY - Which exception governs a day when several exist
// =============================================================================

type ConflictPolicy string

const (
	// ConflictFirstWins keeps the first exception in store order.
	ConflictFirstWins ConflictPolicy = "first_wins"
	// ConflictLastWins keeps the last exception in store order.
	ConflictLastWins ConflictPolicy = "last_wins"
	// ConflictReject fails the lookup with a *DuplicateExceptionError.
	ConflictReject ConflictPolicy = "reject"
)

func (p ConflictPolicy) Valid() bool {
	switch p {
	case ConflictFirstWins, ConflictLastWins, ConflictReject:
		return true
	}
	return false
}

// =============================================================================
// EXCEPTION SET - Exceptions keyed by YYYY-MM-DD
// =============================================================================

type ExceptionSet map[string]WorkException

// NewExceptionSet keys exceptions by date, resolving duplicates with policy.
func NewExceptionSet(exceptions []WorkException, policy ConflictPolicy) (ExceptionSet, error) {
	set := make(ExceptionSet, len(exceptions))
	for _, e := range exceptions {
		if err := set.add(e, policy); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s ExceptionSet) add(e WorkException, policy ConflictPolicy) error {
	key := calendar.Format(e.Date)
	existing, ok := s[key]
	if !ok {
		s[key] = e
		return nil
	}
	switch policy {
	case ConflictLastWins:
		s[key] = e
	case ConflictReject:
		return &DuplicateExceptionError{UserID: e.UserID, Date: e.Date, First: existing.ID, Second: e.ID}
	}
	return nil
}

// On returns the exception governing d, if any.
func (s ExceptionSet) On(d calendar.Date) (WorkException, bool) {
	e, ok := s[calendar.Format(d)]
	return e, ok
}

// =============================================================================
// RECURRING EXCEPTIONS - Organisation-wide days expanded per query
// =============================================================================

// RecurringException applies to every user on each occurrence of Recurrence,
// unless the user has a stored exception for the same day.
type RecurringException struct {
	Name           string
	Recurrence     *calendar.Recurrence
	AvailableHours decimal.Decimal
	Type           ExceptionType
	Reason         string
}

func (r RecurringException) expand(userID UserID, start, end calendar.Date) []WorkException {
	days := r.Recurrence.Between(start, end)
	out := make([]WorkException, 0, len(days))
	for _, d := range days {
		out = append(out, WorkException{
			ID:             ExceptionID(fmt.Sprintf("recurring:%s:%s", r.Name, calendar.Format(d))),
			UserID:         userID,
			Date:           d,
			AvailableHours: r.AvailableHours,
			Type:           r.Type,
			Reason:         r.Reason,
		})
	}
	return out
}

// =============================================================================
// EXCEPTION LOOKUP - Always fresh, never cached
// =============================================================================

type ExceptionLookup struct {
	store     ExceptionStore
	policy    ConflictPolicy
	recurring []RecurringException
}

func NewExceptionLookup(store ExceptionStore, policy ConflictPolicy, recurring []RecurringException) *ExceptionLookup {
	if !policy.Valid() {
		policy = ConflictFirstWins
	}
	return &ExceptionLookup{store: store, policy: policy, recurring: recurring}
}

// InRange returns the exceptions governing each day of [start, end].
func (l *ExceptionLookup) InRange(ctx context.Context, userID UserID, start, end calendar.Date) (ExceptionSet, error) {
	if err := validateRange(userID, start, end); err != nil {
		return nil, err
	}
	stored, err := l.store.ExceptionsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load exceptions for %s: %w", userID, err)
	}
	return l.resolve(userID, start, end, stored)
}

// ForDate returns the exception governing a single day, or nil.
// The store is queried over the half-open window [dayStart, dayStart+24h).
func (l *ExceptionLookup) ForDate(ctx context.Context, userID UserID, date calendar.Date) (*WorkException, error) {
	if userID == "" {
		return nil, newValidationError("user_id", ErrMissingUser)
	}
	stored, err := l.store.ExceptionsInWindow(ctx, userID, date.Start(), date.AddDays(1).Start())
	if err != nil {
		return nil, fmt.Errorf("failed to load exceptions for %s on %s: %w", userID, date, err)
	}
	set, err := l.resolve(userID, date, date, stored)
	if err != nil {
		return nil, err
	}
	if e, ok := set.On(date); ok {
		return &e, nil
	}
	return nil, nil
}

func (l *ExceptionLookup) resolve(userID UserID, start, end calendar.Date, stored []WorkException) (ExceptionSet, error) {
	set, err := NewExceptionSet(stored, l.policy)
	if err != nil {
		return nil, err
	}
	for _, r := range l.recurring {
		for _, e := range r.expand(userID, start, end) {
			if _, taken := set.On(e.Date); !taken {
				set[calendar.Format(e.Date)] = e
			}
		}
	}
	return set, nil
}
