// Package notify turns task events into chat messages and delivers them
// asynchronously with per-kind retry policies. Producers never see delivery
// errors: Submit has no error result and failures end in the logs.
package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/tracker"
)

// Kind identifies what a job announces.
type Kind string

// Job kinds
const (
	KindCreated      Kind = "created"
	KindAssigned     Kind = "assigned"
	KindCompleted    Kind = "completed"
	KindUpdated      Kind = "updated"
	KindDeleted      Kind = "deleted"
	KindReminder     Kind = "reminder"
	KindDailySummary Kind = "daily-summary"
	KindMaintenance  Kind = "maintenance"
	KindPlain        Kind = "plain"
)

// ReminderType is the due-date bucket of a reminder job.
type ReminderType string

// Reminder buckets
const (
	ReminderOverdue  ReminderType = "overdue"
	ReminderToday    ReminderType = "today"
	ReminderTomorrow ReminderType = "tomorrow"
)

// MaxSnapshotDescription bounds the description copied into a snapshot.
const MaxSnapshotDescription = 200

// TaskSnapshot is the immutable view of a task a notification needs.
type TaskSnapshot struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    domain.Priority   `json:"priority"`
	Status      domain.TaskStatus `json:"status"`
	DueDate     time.Time         `json:"due_date"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// SnapshotTask copies the notification-relevant fields of t.
func SnapshotTask(t *domain.Task) TaskSnapshot {
	s := TaskSnapshot{
		ID:          t.ID,
		Title:       t.Title,
		Description: truncate(t.Description, MaxSnapshotDescription),
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		s.CompletedAt = &at
	}
	return s
}

// UserSnapshot is the immutable view of a user a notification needs.
type UserSnapshot struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	ChatUserID string    `json:"chat_user_id,omitempty"`
}

// SnapshotUser copies the notification-relevant fields of u.
func SnapshotUser(u *domain.User) UserSnapshot {
	s := UserSnapshot{ID: u.ID, Username: u.Username}
	if u.ChatUserID != nil {
		s.ChatUserID = *u.ChatUserID
	}
	return s
}

// Mention renders the user as a chat mention when linked, by name otherwise.
func (u UserSnapshot) Mention() string {
	if u.ChatUserID != "" {
		return "<@" + u.ChatUserID + ">"
	}
	return u.Username
}

// DirectChannel returns the user's private channel, or "" when unlinked.
func (u UserSnapshot) DirectChannel() string {
	if u.ChatUserID == "" {
		return ""
	}
	return "@" + u.ChatUserID
}

// SummaryStats are the counts of a daily summary.
type SummaryStats struct {
	CompletedToday int `json:"completed_today"`
	Open           int `json:"open"`
	Overdue        int `json:"overdue"`
	CreatedToday   int `json:"created_today"`
}

// MaintenanceReport describes the outcome of a retention sweep.
type MaintenanceReport struct {
	Archived int64  `json:"archived"`
	Purged   int64  `json:"purged"`
	Error    string `json:"error,omitempty"`
}

// Job is a transient description of one outbound message.
type Job struct {
	ID           uuid.UUID          `json:"id"`
	Kind         Kind               `json:"kind"`
	Task         *TaskSnapshot      `json:"task,omitempty"`
	Tasks        []TaskSnapshot     `json:"tasks,omitempty"`
	Overflow     int                `json:"overflow,omitempty"`
	Actor        UserSnapshot       `json:"actor"`
	Recipient    *UserSnapshot      `json:"recipient,omitempty"`
	Changes      []tracker.Change   `json:"changes,omitempty"`
	ReminderType ReminderType       `json:"reminder_type,omitempty"`
	Summary      *SummaryStats      `json:"summary,omitempty"`
	Maintenance  *MaintenanceReport `json:"maintenance,omitempty"`
	Channel      string             `json:"channel,omitempty"`
	Text         string             `json:"text,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewTaskJob builds a single-task job of the given kind.
func NewTaskJob(kind Kind, task *domain.Task, actor *domain.User) Job {
	snap := SnapshotTask(task)
	return Job{
		ID:        uuid.New(),
		Kind:      kind,
		Task:      &snap,
		Actor:     SnapshotUser(actor),
		CreatedAt: time.Now().UTC(),
	}
}

// To addresses the job to a specific user.
func (j Job) To(recipient *domain.User) Job {
	r := SnapshotUser(recipient)
	j.Recipient = &r
	return j
}

// NewPlainJob builds a free-text job for channel.
func NewPlainJob(channel, text string) Job {
	return Job{
		ID:        uuid.New(),
		Kind:      KindPlain,
		Channel:   channel,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
