package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryAction names the kind of change a history row records.
type HistoryAction string

// Possible history actions
const (
	HistoryActionCreated   HistoryAction = "created"
	HistoryActionUpdated   HistoryAction = "updated"
	HistoryActionCompleted HistoryAction = "completed"
	HistoryActionDeleted   HistoryAction = "deleted"
	HistoryActionArchived  HistoryAction = "archived"
)

// TaskHistory is an append-only audit record of one field change or one
// whole-task action. Rows are never updated once written.
type TaskHistory struct {
	ID           uuid.UUID     `json:"id"`
	TaskID       uuid.UUID     `json:"task_id"`
	ActorID      uuid.UUID     `json:"actor_id"`
	Action       HistoryAction `json:"action"`
	FieldName    *string       `json:"field_name,omitempty"`
	OldValue     *string       `json:"old_value,omitempty"`
	NewValue     *string       `json:"new_value,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	ChatNotified bool          `json:"chat_notified"`
	ChatThreadTS *string       `json:"chat_thread_ts,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Provenance describes where a mutation request came from.
type Provenance struct {
	IPAddress string
	UserAgent string
}

// NewTaskHistory builds a history row for a whole-task action.
func NewTaskHistory(taskID, actorID uuid.UUID, action HistoryAction, p Provenance) *TaskHistory {
	return &TaskHistory{
		ID:        uuid.New(),
		TaskID:    taskID,
		ActorID:   actorID,
		Action:    action,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// WithField attaches a field-level change to the row.
func (h *TaskHistory) WithField(field, oldValue, newValue string) *TaskHistory {
	h.FieldName = &field
	h.OldValue = &oldValue
	h.NewValue = &newValue
	return h
}
