/*
store.go - Repositories the engine reads from

PURPOSE:
  The engine owns no data. Profiles, exceptions and tasks are owned by
  collaborators and reached through the three interfaces below. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

CONTRACTS:
  ProfileStore.CreateProfile is create-if-absent: when two callers race to
  create the same profile, both succeed and both get the stored row back.

  ExceptionStore returns exceptions in insertion order so that the
  first_wins conflict policy is deterministic.

  TaskStore.ActiveTasksForAssignee returns tasks where the user is an
  assignee, start <= to, due >= from, and status is not done.

IMPLEMENTATIONS:
  - capacity/store/memory.go: in-memory (tests, dev)
  - store/sqlite: SQLite
  - store/postgres: PostgreSQL (pgx)
*/
package capacity

import (
	"context"
	"time"

	"github.com/warp/capacity-engine/calendar"
)

type ProfileStore interface {
	// GetProfile returns nil, nil when the user has no profile yet.
	GetProfile(ctx context.Context, userID UserID) (*Profile, error)

	// CreateProfile inserts p unless a profile already exists for p.UserID.
	// It returns whichever profile is stored afterwards.
	CreateProfile(ctx context.Context, p Profile) (Profile, error)

	// SaveProfile inserts or replaces a profile (profile management).
	SaveProfile(ctx context.Context, p Profile) error
}

type ExceptionStore interface {
	// ExceptionsInRange returns exceptions dated within [from, to] inclusive.
	ExceptionsInRange(ctx context.Context, userID UserID, from, to calendar.Date) ([]WorkException, error)

	// ExceptionsInWindow returns exceptions dated within the half-open [from, until).
	ExceptionsInWindow(ctx context.Context, userID UserID, from, until time.Time) ([]WorkException, error)

	// SaveException records a new exception. Returns ErrDuplicateException
	// when the user already has one on that date.
	SaveException(ctx context.Context, e WorkException) error
}

type TaskStore interface {
	// ActiveTasksForAssignee returns non-done tasks of userID overlapping [from, to].
	ActiveTasksForAssignee(ctx context.Context, userID UserID, from, to time.Time) ([]TaskAssignment, error)

	// SaveTask inserts or replaces a task and its assignees.
	SaveTask(ctx context.Context, t TaskAssignment) error
}

// Stores bundles the three repositories. One value usually implements all three.
type Stores struct {
	Profiles   ProfileStore
	Exceptions ExceptionStore
	Tasks      TaskStore
}

// Repository is implemented by the bundled stores (memory, sqlite, postgres).
type Repository interface {
	ProfileStore
	ExceptionStore
	TaskStore
}

// StoresFrom uses a single repository for all three roles.
func StoresFrom(r Repository) Stores {
	return Stores{Profiles: r, Exceptions: r, Tasks: r}
}
