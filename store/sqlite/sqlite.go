/*
Package sqlite provides a SQLite-backed capacity.Repository.

PURPOSE:
  Persists capacity profiles, work exceptions and task assignments so the
  engine has real collaborators to read from. The engine itself only reads;
  the write methods serve profile management, leave entry and task intake.

INTERFACES IMPLEMENTED:
  capacity.ProfileStore:   per-user capacity profiles (create-if-absent)
  capacity.ExceptionStore: per-date capacity overrides
  capacity.TaskStore:      task assignments and their assignees

KEY TABLES:
  profiles:        one row per user, hours stored as decimal text
  work_exceptions: one row per (user, date), enforced by a unique index
  tasks:           task span, estimate and status
  task_assignees:  task-to-user links, ordered by position

DATES:
  Calendar days are stored as YYYY-MM-DD text, so range predicates are plain
  string comparisons. Timestamps are RFC3339 UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is limited to a
  single connection, since every new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./data/capacity.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := capacity.NewEngine(capacity.StoresFrom(store))

SEE ALSO:
  - capacity/store.go: Interface definitions
  - capacity/store/memory.go: In-memory implementation for testing
  - store/postgres: the same schema on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

// Store implements capacity.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ capacity.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		daily_hours TEXT NOT NULL,
		weekly_hours TEXT NOT NULL,
		working_weekdays TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_exceptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		available_hours TEXT NOT NULL,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- One exception governs a (user, date)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_work_exceptions_user_date
		ON work_exceptions(user_id, date);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		estimated_hours TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_span
		ON tasks(start_date, due_date);

	CREATE TABLE IF NOT EXISTS task_assignees (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (task_id, user_id)
	);

	-- Hot path: allocation lookups by assignee
	CREATE INDEX IF NOT EXISTS idx_task_assignees_user
		ON task_assignees(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILE STORE (capacity.ProfileStore interface)
// =============================================================================

// GetProfile returns nil, nil when the user has no profile.
func (s *Store) GetProfile(ctx context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProfile(ctx, userID)
}

func (s *Store) getProfile(ctx context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	var p capacity.Profile
	var daily, weekly, weekdays, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, daily_hours, weekly_hours, working_weekdays, created_at, updated_at
		FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &daily, &weekly, &weekdays, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if p.DailyCapacityHours, err = decimal.NewFromString(daily); err != nil {
		return nil, fmt.Errorf("corrupt daily_hours for %s: %w", userID, err)
	}
	if p.WeeklyCapacityHours, err = decimal.NewFromString(weekly); err != nil {
		return nil, fmt.Errorf("corrupt weekly_hours for %s: %w", userID, err)
	}
	if p.WorkingWeekdays, err = parseWeekdays(weekdays); err != nil {
		return nil, fmt.Errorf("corrupt working_weekdays for %s: %w", userID, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// CreateProfile inserts p unless the user already has a profile, then
// returns whatever is stored.
func (s *Store) CreateProfile(ctx context.Context, p capacity.Profile) (capacity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, daily_hours, weekly_hours, working_weekdays, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		p.UserID, p.DailyCapacityHours.String(), p.WeeklyCapacityHours.String(),
		p.WorkingWeekdays.String(), now, now,
	)
	if err != nil {
		return capacity.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}

	stored, err := s.getProfile(ctx, p.UserID)
	if err != nil {
		return capacity.Profile{}, err
	}
	if stored == nil {
		return capacity.Profile{}, fmt.Errorf("profile for %s vanished after insert", p.UserID)
	}
	return *stored, nil
}

// SaveProfile inserts or replaces a profile.
func (s *Store) SaveProfile(ctx context.Context, p capacity.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, daily_hours, weekly_hours, working_weekdays, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			daily_hours = excluded.daily_hours,
			weekly_hours = excluded.weekly_hours,
			working_weekdays = excluded.working_weekdays,
			updated_at = excluded.updated_at`,
		p.UserID, p.DailyCapacityHours.String(), p.WeeklyCapacityHours.String(),
		p.WorkingWeekdays.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// =============================================================================
// EXCEPTION STORE (capacity.ExceptionStore interface)
// =============================================================================

const exceptionColumns = `id, user_id, date, available_hours, type, reason, created_at`

// ExceptionsInRange returns exceptions dated within [from, to].
func (s *Store) ExceptionsInRange(ctx context.Context, userID capacity.UserID, from, to calendar.Date) ([]capacity.WorkException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryExceptions(ctx, `
		SELECT `+exceptionColumns+`
		FROM work_exceptions
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, rowid ASC`,
		userID, calendar.Format(from), calendar.Format(to),
	)
}

// ExceptionsInWindow returns exceptions whose day starts within [from, until).
func (s *Store) ExceptionsInWindow(ctx context.Context, userID capacity.UserID, from, until time.Time) ([]capacity.WorkException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, err := s.queryExceptions(ctx, `
		SELECT `+exceptionColumns+`
		FROM work_exceptions
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, rowid ASC`,
		userID, calendar.Format(calendar.DateOf(from)), calendar.Format(calendar.DateOf(until)),
	)
	if err != nil {
		return nil, err
	}

	var out []capacity.WorkException
	for _, e := range candidates {
		if at := e.Date.Start(); !at.Before(from) && at.Before(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SaveException records a new exception.
func (s *Store) SaveException(ctx context.Context, e capacity.WorkException) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_exceptions (`+exceptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, calendar.Format(e.Date), e.AvailableHours.String(),
		e.Type, e.Reason, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s on %s", capacity.ErrDuplicateException, e.UserID, e.Date)
		}
		return fmt.Errorf("failed to save exception: %w", err)
	}
	return nil
}

func (s *Store) queryExceptions(ctx context.Context, query string, args ...any) ([]capacity.WorkException, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer rows.Close()

	var out []capacity.WorkException
	for rows.Next() {
		var e capacity.WorkException
		var date, hours, createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &date, &hours, &e.Type, &e.Reason, &createdAt); err != nil {
			return nil, err
		}
		if e.Date, err = calendar.ParseDate(date); err != nil {
			return nil, fmt.Errorf("corrupt exception date %q: %w", date, err)
		}
		if e.AvailableHours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("corrupt available_hours %q: %w", hours, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// TASK STORE (capacity.TaskStore interface)
// =============================================================================

// ActiveTasksForAssignee returns non-done tasks of userID overlapping [from, to].
func (s *Store) ActiveTasksForAssignee(ctx context.Context, userID capacity.UserID, from, to time.Time) ([]capacity.TaskAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.start_date, t.due_date, t.estimated_hours, t.status, t.created_at,
		       (SELECT json_group_array(user_id) FROM (
		            SELECT user_id FROM task_assignees WHERE task_id = t.id ORDER BY position
		       ))
		FROM tasks t
		JOIN task_assignees me ON me.task_id = t.id AND me.user_id = ?
		WHERE t.status != ? AND t.start_date <= ? AND t.due_date >= ?
		ORDER BY t.created_at ASC, t.rowid ASC`,
		userID, capacity.StatusDone,
		calendar.Format(calendar.DateOf(to)), calendar.Format(calendar.DateOf(from)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []capacity.TaskAssignment
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTask inserts or replaces a task and its assignees atomically.
func (s *Store) SaveTask(ctx context.Context, t capacity.TaskAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, start_date, due_date, estimated_hours, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_date = excluded.start_date,
			due_date = excluded.due_date,
			estimated_hours = excluded.estimated_hours,
			status = excluded.status`,
		t.ID, t.Title, calendar.Format(t.StartDate), calendar.Format(t.DueDate),
		t.EstimatedHours.String(), t.Status, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = ?", t.ID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	for i, userID := range t.Assignees {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO task_assignees (task_id, user_id, position) VALUES (?, ?, ?)",
			t.ID, userID, i,
		); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: assignee %s listed twice", capacity.ErrInvalidTask, userID)
			}
			return fmt.Errorf("failed to save assignee: %w", err)
		}
	}

	return tx.Commit()
}

func scanTask(rows *sql.Rows) (capacity.TaskAssignment, error) {
	var t capacity.TaskAssignment
	var start, due, hours, createdAt, assignees string
	if err := rows.Scan(&t.ID, &t.Title, &start, &due, &hours, &t.Status, &createdAt, &assignees); err != nil {
		return t, err
	}

	var err error
	if t.StartDate, err = calendar.ParseDate(start); err != nil {
		return t, fmt.Errorf("corrupt start_date %q: %w", start, err)
	}
	if t.DueDate, err = calendar.ParseDate(due); err != nil {
		return t, fmt.Errorf("corrupt due_date %q: %w", due, err)
	}
	if t.EstimatedHours, err = decimal.NewFromString(hours); err != nil {
		return t, fmt.Errorf("corrupt estimated_hours %q: %w", hours, err)
	}
	if err := json.Unmarshal([]byte(assignees), &t.Assignees); err != nil {
		return t, fmt.Errorf("corrupt assignees for %s: %w", t.ID, err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"task_assignees", "tasks", "work_exceptions", "profiles"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func parseWeekdays(s string) (calendar.WeekdaySet, error) {
	if s == "" {
		return calendar.WeekdaySet{}, nil
	}
	return calendar.ParseWeekdays(strings.Split(s, ","))
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
