// Package store provides an in-memory capacity.Repository.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	profiles   map[capacity.UserID]capacity.Profile
	exceptions map[capacity.UserID][]capacity.WorkException // date-ascending, insertion order within a day
	tasks      map[capacity.TaskID]capacity.TaskAssignment
	taskOrder  []capacity.TaskID
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		profiles:   make(map[capacity.UserID]capacity.Profile),
		exceptions: make(map[capacity.UserID][]capacity.WorkException),
		tasks:      make(map[capacity.TaskID]capacity.TaskAssignment),
		now:        time.Now,
	}
}

var _ capacity.Repository = (*Memory)(nil)

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) GetProfile(_ context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

// CreateProfile is create-if-absent.
func (m *Memory) CreateProfile(_ context.Context, p capacity.Profile) (capacity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.UserID]; ok {
		return existing.Clone(), nil
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.profiles[p.UserID] = p.Clone()
	return p, nil
}

func (m *Memory) SaveProfile(_ context.Context, p capacity.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if existing, ok := m.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.UserID] = p.Clone()
	return nil
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

func (m *Memory) ExceptionsInRange(_ context.Context, userID capacity.UserID, from, to calendar.Date) ([]capacity.WorkException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []capacity.WorkException
	for _, e := range m.exceptions[userID] {
		if e.Date.AfterOrEqual(from) && e.Date.BeforeOrEqual(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) ExceptionsInWindow(_ context.Context, userID capacity.UserID, from, until time.Time) ([]capacity.WorkException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []capacity.WorkException
	for _, e := range m.exceptions[userID] {
		at := e.Date.Start()
		if !at.Before(from) && at.Before(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SaveException rejects a second exception for the same user and day.
func (m *Memory) SaveException(_ context.Context, e capacity.WorkException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.exceptions[e.UserID] {
		if existing.Date.Equal(e.Date) {
			return &capacity.DuplicateExceptionError{UserID: e.UserID, Date: e.Date, First: existing.ID, Second: e.ID}
		}
	}
	m.insertExceptionLocked(e)
	return nil
}

// ImportExceptions appends exceptions without the duplicate check. It stands
// in for upstream systems that never enforced one exception per day.
func (m *Memory) ImportExceptions(_ context.Context, list ...capacity.WorkException) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range list {
		m.insertExceptionLocked(e)
	}
}

func (m *Memory) insertExceptionLocked(e capacity.WorkException) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	list := m.exceptions[e.UserID]

	// Insert after any exception on the same day so store order is insertion order.
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Date.After(e.Date)
	})
	list = append(list, capacity.WorkException{})
	copy(list[i+1:], list[i:])
	list[i] = e
	m.exceptions[e.UserID] = list
}

// =============================================================================
// TASKS
// =============================================================================

func (m *Memory) ActiveTasksForAssignee(_ context.Context, userID capacity.UserID, from, to time.Time) ([]capacity.TaskAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []capacity.TaskAssignment
	for _, id := range m.taskOrder {
		t := m.tasks[id]
		if t.Status.Terminal() || !t.HasAssignee(userID) {
			continue
		}
		if t.StartDate.Start().After(to) || t.DueDate.End().Before(from) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out, nil
}

// SaveTask inserts or replaces a task.
func (m *Memory) SaveTask(_ context.Context, t capacity.TaskAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tasks[t.ID]; ok {
		t.CreatedAt = existing.CreatedAt
	} else {
		m.taskOrder = append(m.taskOrder, t.ID)
		if t.CreatedAt.IsZero() {
			t.CreatedAt = m.now()
		}
	}
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func cloneTask(t capacity.TaskAssignment) capacity.TaskAssignment {
	t.Assignees = slices.Clone(t.Assignees)
	return t
}
