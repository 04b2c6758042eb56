package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Task list defaults and limits.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// TaskSortField names a column a task listing may be ordered by.
type TaskSortField string

// Sortable task fields
const (
	SortByDueDate   TaskSortField = "due_date"
	SortByPriority  TaskSortField = "priority"
	SortByCreatedAt TaskSortField = "created_at"
	SortByUpdatedAt TaskSortField = "updated_at"
	SortByTitle     TaskSortField = "title"
)

// TaskFilter selects, orders and paginates a user's tasks.
// Zero values mean "no filter" and default ordering (due date ascending).
type TaskFilter struct {
	Status       domain.TaskStatus
	Priority     domain.Priority
	CategoryID   *uuid.UUID
	AssignedToID *uuid.UUID
	Sort         TaskSortField
	Descending   bool
	Page         int
	PerPage      int
}

// Normalize clamps pagination and fills defaults.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	switch f.Sort {
	case SortByDueDate, SortByPriority, SortByCreatedAt, SortByUpdatedAt, SortByTitle:
	default:
		f.Sort = SortByDueDate
	}
	return f
}

// Offset returns the row offset for the filter's page.
func (f TaskFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Page is one slice of a filtered listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

// NewPage assembles a Page from a filter's window and the total count.
func NewPage[T any](items []T, total int, f TaskFilter) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Total:   total,
		Page:    f.Page,
		PerPage: f.PerPage,
		HasMore: f.Offset()+len(items) < total,
	}
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create saves a new task.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetForUpdate retrieves a task and locks its row until the enclosing
	// transaction ends. Only meaningful on a store bound with WithTx.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update saves changes to an existing task. The write succeeds only if the
	// stored version equals task.Version; on success task.Version is incremented.
	// Returns ErrConflict on a version mismatch and ErrTaskNotFound if absent.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task; history and comments cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns the owner's tasks matching the filter.
	List(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) (Page[*domain.Task], error)

	// FindDueBefore returns open tasks due before the given instant, across all users.
	FindDueBefore(ctx context.Context, before time.Time) ([]*domain.Task, error)

	// ArchiveCompletedBefore moves tasks completed before cutoff to archived
	// and returns how many rows changed.
	ArchiveCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ReassignCategory moves every task in one category to another.
	ReassignCategory(ctx context.Context, from, to uuid.UUID) (int64, error)

	// Stats aggregates the owner's tasks relative to now.
	Stats(ctx context.Context, ownerID uuid.UUID, now time.Time) (domain.TaskStats, error)

	// DailySummary counts the assignee's activity for the day containing now.
	DailySummary(ctx context.Context, userID uuid.UUID, now time.Time) (domain.DailySummary, error)

	// WithTx returns a TaskStore bound to the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// HistoryStore persists the append-only task audit trail.
type HistoryStore interface {
	// Append writes history rows in order.
	Append(ctx context.Context, entries ...*domain.TaskHistory) error

	// ListByTask returns a task's history, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskHistory, error)

	// MarkNotified flags a task's history rows of the given action as announced.
	MarkNotified(ctx context.Context, taskID uuid.UUID, action domain.HistoryAction) error

	// PurgeBefore deletes rows created before cutoff and returns the count.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a HistoryStore bound to the provided transaction.
	WithTx(tx *sql.Tx) HistoryStore
}

// CommentStore persists task comments.
type CommentStore interface {
	Create(ctx context.Context, comment *domain.TaskComment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskComment, error)
	Update(ctx context.Context, comment *domain.TaskComment) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskComment, error)
	WithTx(tx *sql.Tx) CommentStore
}
