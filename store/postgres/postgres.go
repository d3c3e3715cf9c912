// Package postgres provides a PostgreSQL-backed capacity.Repository using a
// pgx connection pool and embedded SQL migrations.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB implements capacity.Repository on PostgreSQL.
type DB struct {
	pool *pgxpool.Pool
}

var _ capacity.Repository = (*DB)(nil)

// NewDB creates a new PostgreSQL connection pool and checks it.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping checks the pool (health endpoint).
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations executes all pending SQL migration files in order.
// Applied files are tracked in a schema_migrations table.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	rows, err := db.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan migration filenames: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, f := range applied {
		done[f] = true
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		if done[filename] {
			continue
		}
		if err := db.applyMigration(ctx, filename); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, filename string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", filename, err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", filename, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", filename, err)
	}
	return nil
}

// =============================================================================
// PROFILES
// =============================================================================

const profileColumns = `user_id, daily_hours::text, weekly_hours::text, working_weekdays, created_at, updated_at`

// GetProfile returns nil, nil when the user has no profile.
func (db *DB) GetProfile(ctx context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, string(userID))
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// CreateProfile inserts p unless one exists, returning the stored row either way.
func (db *DB) CreateProfile(ctx context.Context, p capacity.Profile) (capacity.Profile, error) {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, daily_hours, weekly_hours, working_weekdays)
		VALUES ($1, $2::numeric, $3::numeric, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		string(p.UserID), p.DailyCapacityHours.String(), p.WeeklyCapacityHours.String(), p.WorkingWeekdays.Names(),
	)
	if err != nil {
		return capacity.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}

	stored, err := db.GetProfile(ctx, p.UserID)
	if err != nil {
		return capacity.Profile{}, err
	}
	if stored == nil {
		return capacity.Profile{}, fmt.Errorf("profile for %s vanished after insert", p.UserID)
	}
	return *stored, nil
}

// SaveProfile inserts or replaces a profile.
func (db *DB) SaveProfile(ctx context.Context, p capacity.Profile) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, daily_hours, weekly_hours, working_weekdays)
		VALUES ($1, $2::numeric, $3::numeric, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_hours = EXCLUDED.daily_hours,
			weekly_hours = EXCLUDED.weekly_hours,
			working_weekdays = EXCLUDED.working_weekdays,
			updated_at = NOW()`,
		string(p.UserID), p.DailyCapacityHours.String(), p.WeeklyCapacityHours.String(), p.WorkingWeekdays.Names(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (capacity.Profile, error) {
	var p capacity.Profile
	var userID, daily, weekly string
	var weekdays []string
	if err := row.Scan(&userID, &daily, &weekly, &weekdays, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.UserID = capacity.UserID(userID)

	var err error
	if p.DailyCapacityHours, err = decimal.NewFromString(daily); err != nil {
		return p, err
	}
	if p.WeeklyCapacityHours, err = decimal.NewFromString(weekly); err != nil {
		return p, err
	}
	if p.WorkingWeekdays, err = calendar.ParseWeekdays(weekdays); err != nil {
		return p, err
	}
	return p, nil
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

const exceptionColumns = `id, user_id, date, available_hours::text, type, reason, created_at`

// ExceptionsInRange returns exceptions dated within [from, to].
func (db *DB) ExceptionsInRange(ctx context.Context, userID capacity.UserID, from, to calendar.Date) ([]capacity.WorkException, error) {
	return db.queryExceptions(ctx, `
		SELECT `+exceptionColumns+`
		FROM work_exceptions
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, seq`,
		string(userID), from.Time(), to.Time(),
	)
}

// ExceptionsInWindow returns exceptions whose day starts within [from, until).
func (db *DB) ExceptionsInWindow(ctx context.Context, userID capacity.UserID, from, until time.Time) ([]capacity.WorkException, error) {
	return db.queryExceptions(ctx, `
		SELECT `+exceptionColumns+`
		FROM work_exceptions
		WHERE user_id = $1 AND date::timestamp >= $2::timestamp AND date::timestamp < $3::timestamp
		ORDER BY date, seq`,
		string(userID), from.UTC(), until.UTC(),
	)
}

// SaveException records a new exception.
func (db *DB) SaveException(ctx context.Context, e capacity.WorkException) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO work_exceptions (id, user_id, date, available_hours, type, reason)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		string(e.ID), string(e.UserID), e.Date.Time(), e.AvailableHours.String(), string(e.Type), e.Reason,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s on %s", capacity.ErrDuplicateException, e.UserID, e.Date)
		}
		return fmt.Errorf("failed to save exception: %w", err)
	}
	return nil
}

func (db *DB) queryExceptions(ctx context.Context, query string, args ...any) ([]capacity.WorkException, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer rows.Close()

	var out []capacity.WorkException
	for rows.Next() {
		var id, userID, hours, typ string
		var date time.Time
		var e capacity.WorkException
		if err := rows.Scan(&id, &userID, &date, &hours, &typ, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		e.ID, e.UserID, e.Type = capacity.ExceptionID(id), capacity.UserID(userID), capacity.ExceptionType(typ)
		e.Date = calendar.DateOf(date)
		if e.AvailableHours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("corrupt available_hours %q: %w", hours, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exceptions: %w", err)
	}
	return out, nil
}

// =============================================================================
// TASKS
// =============================================================================

// ActiveTasksForAssignee returns non-done tasks of userID overlapping [from, to].
func (db *DB) ActiveTasksForAssignee(ctx context.Context, userID capacity.UserID, from, to time.Time) ([]capacity.TaskAssignment, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, title, assignees, start_date, due_date, estimated_hours::text, status, created_at
		FROM tasks
		WHERE $1 = ANY(assignees)
		  AND status <> $2
		  AND start_date <= $3
		  AND due_date >= $4
		ORDER BY created_at, seq`,
		string(userID), string(capacity.StatusDone),
		calendar.DateOf(to).Time(), calendar.DateOf(from).Time(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []capacity.TaskAssignment
	for rows.Next() {
		var id, hours, status string
		var assignees []string
		var start, due time.Time
		var t capacity.TaskAssignment
		if err := rows.Scan(&id, &t.Title, &assignees, &start, &due, &hours, &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.ID, t.Status = capacity.TaskID(id), capacity.TaskStatus(status)
		t.StartDate, t.DueDate = calendar.DateOf(start), calendar.DateOf(due)
		for _, a := range assignees {
			t.Assignees = append(t.Assignees, capacity.UserID(a))
		}
		if t.EstimatedHours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("corrupt estimated_hours %q: %w", hours, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// SaveTask inserts or replaces a task.
func (db *DB) SaveTask(ctx context.Context, t capacity.TaskAssignment) error {
	assignees := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees[i] = string(a)
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO tasks (id, title, assignees, start_date, due_date, estimated_hours, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			assignees = EXCLUDED.assignees,
			start_date = EXCLUDED.start_date,
			due_date = EXCLUDED.due_date,
			estimated_hours = EXCLUDED.estimated_hours,
			status = EXCLUDED.status`,
		string(t.ID), t.Title, assignees, t.StartDate.Time(), t.DueDate.Time(),
		t.EstimatedHours.String(), string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Reset clears all capacity data (for demo scenarios).
func (db *DB) Reset(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `TRUNCATE tasks, work_exceptions, profiles`)
	return err
}
