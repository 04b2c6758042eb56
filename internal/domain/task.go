package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority ranks how urgent a task is.
type Priority string

// Possible priority values
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Weight orders priorities for sorting; unknown values rank lowest.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether p is one of the canonical priorities.
func (p Priority) IsValid() bool {
	return p.Weight() > 0
}

// TaskStatus represents where a task is in its lifecycle.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusArchived   TaskStatus = "archived"
)

// IsValid reports whether s is one of the canonical statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// IsOpen reports whether a task in this status still needs work.
func (s TaskStatus) IsOpen() bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

const (
	// MaxTaskTitleLength bounds Task.Title in characters.
	MaxTaskTitleLength = 200

	// DueDateLayout is the calendar-day representation used in diffs and history.
	DueDateLayout = "2006-01-02"
)

// Task is a trackable unit of work owned by a user.
type Task struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        time.Time  `json:"due_date"`
	Priority       Priority   `json:"priority"`
	Status         TaskStatus `json:"status"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	CreatedByID    uuid.UUID  `json:"created_by_id"`
	AssignedToID   uuid.UUID  `json:"assigned_to_id"`
	CompletedByID  *uuid.UUID `json:"completed_by_id,omitempty"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Tags           []string   `json:"tags"`
	ChatThreadTS   *string    `json:"chat_thread_ts,omitempty"`
	ChatChannelID  *string    `json:"chat_channel_id,omitempty"`
	ChatMessageTS  *string    `json:"chat_message_ts,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTaskParams carries the caller-supplied fields of a new task.
// Zero values select the defaults.
type NewTaskParams struct {
	Title          string
	Description    string
	DueDate        time.Time
	Priority       Priority
	Status         TaskStatus
	CreatedByID    uuid.UUID
	AssignedToID   uuid.UUID
	CategoryID     *uuid.UUID
	EstimatedHours *float64
	Tags           []string
}

// NewTask creates a pending task owned by ownerID. Creator and assignee
// default to the owner when unset, priority defaults to medium.
func NewTask(ownerID uuid.UUID, p NewTaskParams) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:             uuid.New(),
		Title:          strings.TrimSpace(p.Title),
		Description:    p.Description,
		DueDate:        p.DueDate.UTC(),
		Priority:       p.Priority,
		Status:         p.Status,
		OwnerID:        ownerID,
		CreatedByID:    p.CreatedByID,
		AssignedToID:   p.AssignedToID,
		CategoryID:     p.CategoryID,
		EstimatedHours: p.EstimatedHours,
		Tags:           NormalizeTags(p.Tags),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Status == "" {
		task.Status = TaskStatusPending
	}
	if task.CreatedByID == uuid.Nil {
		task.CreatedByID = ownerID
	}
	if task.AssignedToID == uuid.Nil {
		task.AssignedToID = ownerID
	}

	// New tasks start open; completion metadata is only set by Complete.
	if !task.Status.IsOpen() {
		return nil, NewValidationError("status", "must be pending or in-progress for a new task")
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task invariants.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty")
	}
	if t.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "cannot be empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "is required")
	}
	if len([]rune(t.Title)) > MaxTaskTitleLength {
		return NewValidationError("title", "must be at most 200 characters")
	}
	if t.DueDate.IsZero() {
		return NewValidationError("due_date", "is required")
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", "must be one of low, medium, high, critical")
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "must be one of pending, in-progress, completed, archived")
	}
	if err := t.validateCompletion(); err != nil {
		return err
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return NewValidationError("estimated_hours", "cannot be negative")
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return NewValidationError("actual_hours", "cannot be negative")
	}
	return nil
}

// validateCompletion enforces that completion metadata exists exactly when the
// task has been completed. Archived tasks keep the metadata of their completion.
func (t *Task) validateCompletion() error {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusArchived:
		if t.CompletedAt == nil {
			return NewValidationError("completed_at", "is required once a task is completed")
		}
	default:
		if t.CompletedAt != nil || t.CompletedByID != nil {
			return NewValidationError("completed_at", "must be empty for an open task")
		}
	}
	return nil
}

// IsCompleted reports whether the task has been completed (archived tasks included).
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusArchived
}

// IsHighPriority reports whether the task is high or critical priority.
func (t *Task) IsHighPriority() bool {
	return t.Priority == PriorityHigh || t.Priority == PriorityCritical
}

// CanComplete reports whether userID may complete the task.
func (t *Task) CanComplete(userID uuid.UUID) bool {
	return userID == t.OwnerID || userID == t.AssignedToID
}

// Complete marks the task completed by userID at the given time.
func (t *Task) Complete(userID uuid.UUID, at time.Time) {
	at = at.UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &at
	t.CompletedByID = &userID
	t.UpdatedAt = at
}

// Reopen moves a completed task back to an open status and clears its
// completion metadata.
func (t *Task) Reopen(status TaskStatus) {
	t.Status = status
	t.CompletedAt = nil
	t.CompletedByID = nil
}

// IsOverdue reports whether an open task's due day is before now's day.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted() && DayStart(t.DueDate).Before(DayStart(now))
}

// IsDueToday reports whether the task is due on now's calendar day.
func (t *Task) IsDueToday(now time.Time) bool {
	return DayStart(t.DueDate).Equal(DayStart(now))
}

// IsDueTomorrow reports whether the task is due the day after now.
func (t *Task) IsDueTomorrow(now time.Time) bool {
	return DayStart(t.DueDate).Equal(DayStart(now).AddDate(0, 0, 1))
}

// DayStart truncates t to midnight UTC of its calendar day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeTags trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
