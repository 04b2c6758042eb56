package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore. Function fields override the
// default behavior; the default keeps copies of tasks and honors versions.
type MockTaskStore struct {
	mu    sync.Mutex
	Tasks map[uuid.UUID]*domain.Task

	CreateFn       func(ctx context.Context, task *domain.Task) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateFn       func(ctx context.Context, task *domain.Task) error
	DeleteFn       func(ctx context.Context, id uuid.UUID) error
	ListFn         func(ctx context.Context, ownerID uuid.UUID, f store.TaskFilter) (store.Page[*domain.Task], error)
	FindDueFn      func(ctx context.Context, before time.Time) ([]*domain.Task, error)
	ArchiveFn      func(ctx context.Context, cutoff time.Time) (int64, error)
	StatsFn        func(ctx context.Context, ownerID uuid.UUID, now time.Time) (domain.TaskStats, error)
	DailySummaryFn func(ctx context.Context, userID uuid.UUID, now time.Time) (domain.DailySummary, error)

	CreateCalls int
	UpdateCalls int
	ListCalls   int
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{Tasks: make(map[uuid.UUID]*domain.Task)}
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	return &c
}

// Put seeds a task without going through Create.
func (m *MockTaskStore) Put(tasks ...*domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		m.Tasks[t.ID] = copyTask(t)
	}
}

// Get returns the stored copy of a task, or nil.
func (m *MockTaskStore) Get(id uuid.UUID) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Tasks[id]; ok {
		return copyTask(t)
	}
	return nil
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.Put(task)
	return nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if t := m.Get(id); t != nil {
		return t, nil
	}
	return nil, store.ErrTaskNotFound
}

// GetForUpdate implements store.TaskStore.
func (m *MockTaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.GetByID(ctx, id)
}

// Update implements store.TaskStore with the same version check as Postgres.
func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if existing.Version != task.Version {
		return store.ErrConflict
	}
	task.Version++
	m.Tasks[task.ID] = copyTask(task)
	return nil
}

// Delete implements store.TaskStore.
func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.Tasks, id)
	return nil
}

// List implements store.TaskStore, ordering by due date then ID.
func (m *MockTaskStore) List(ctx context.Context, ownerID uuid.UUID, f store.TaskFilter) (store.Page[*domain.Task], error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	f = f.Normalize()
	if m.ListFn != nil {
		return m.ListFn(ctx, ownerID, f)
	}

	m.mu.Lock()
	var matched []*domain.Task
	for _, t := range m.Tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
			continue
		}
		if f.AssignedToID != nil && t.AssignedToID != *f.AssignedToID {
			continue
		}
		matched = append(matched, copyTask(t))
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DueDate.Equal(matched[j].DueDate) {
			return matched[i].DueDate.Before(matched[j].DueDate)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return store.NewPage(matched[start:end], total, f), nil
}

// FindDueBefore implements store.TaskStore.
func (m *MockTaskStore) FindDueBefore(ctx context.Context, before time.Time) ([]*domain.Task, error) {
	if m.FindDueFn != nil {
		return m.FindDueFn(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.Tasks {
		if t.Status.IsOpen() && t.DueDate.Before(before) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// ArchiveCompletedBefore implements store.TaskStore.
func (m *MockTaskStore) ArchiveCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.ArchiveFn != nil {
		return m.ArchiveFn(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.Tasks {
		if t.Status == domain.TaskStatusCompleted && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			t.Status = domain.TaskStatusArchived
			t.Version++
			n++
		}
	}
	return n, nil
}

// ReassignCategory implements store.TaskStore.
func (m *MockTaskStore) ReassignCategory(ctx context.Context, from, to uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.Tasks {
		if t.CategoryID != nil && *t.CategoryID == from {
			id := to
			t.CategoryID = &id
			n++
		}
	}
	return n, nil
}

// Stats implements store.TaskStore.
func (m *MockTaskStore) Stats(ctx context.Context, ownerID uuid.UUID, now time.Time) (domain.TaskStats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx, ownerID, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.TaskStats
	for _, t := range m.Tasks {
		if t.OwnerID != ownerID {
			continue
		}
		s.Total++
		switch t.Status {
		case domain.TaskStatusCompleted:
			s.Completed++
		case domain.TaskStatusPending:
			s.Pending++
		case domain.TaskStatusInProgress:
			s.InProgress++
		}
		if t.Status.IsOpen() {
			switch {
			case t.IsOverdue(now):
				s.Overdue++
			case t.IsDueToday(now):
				s.DueToday++
			case t.IsDueTomorrow(now):
				s.DueTomorrow++
			}
			if t.IsHighPriority() {
				s.HighPriority++
			}
		}
	}
	s.FinalizeRate()
	return s, nil
}

// DailySummary implements store.TaskStore.
func (m *MockTaskStore) DailySummary(ctx context.Context, userID uuid.UUID, now time.Time) (domain.DailySummary, error) {
	if m.DailySummaryFn != nil {
		return m.DailySummaryFn(ctx, userID, now)
	}
	today := domain.DayStart(now)
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.DailySummary
	for _, t := range m.Tasks {
		if t.AssignedToID != userID {
			continue
		}
		if t.CompletedAt != nil && !t.CompletedAt.Before(today) {
			s.CompletedToday++
		}
		if t.Status.IsOpen() {
			s.Open++
			if t.IsOverdue(now) {
				s.Overdue++
			}
		}
		if !t.CreatedAt.Before(today) {
			s.CreatedToday++
		}
	}
	return s, nil
}

// WithTx returns the same store; the fake has no transactions.
func (m *MockTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return m
}
