package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxCommentLength bounds TaskComment.Content in characters.
const MaxCommentLength = 5000

// TaskComment is a free-text discussion entry on a task.
type TaskComment struct {
	ID            uuid.UUID `json:"id"`
	TaskID        uuid.UUID `json:"task_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	Content       string    `json:"content"`
	ChatThreadTS  *string   `json:"chat_thread_ts,omitempty"`
	ChatMessageTS *string   `json:"chat_message_ts,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewTaskComment creates a comment authored by authorID.
func NewTaskComment(taskID, authorID uuid.UUID, content string) (*TaskComment, error) {
	now := time.Now().UTC()
	c := &TaskComment{
		ID:        uuid.New(),
		TaskID:    taskID,
		AuthorID:  authorID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the comment fields.
func (c *TaskComment) Validate() error {
	if c.TaskID == uuid.Nil {
		return NewValidationError("task_id", "cannot be empty")
	}
	if c.AuthorID == uuid.Nil {
		return NewValidationError("author_id", "cannot be empty")
	}
	if c.Content == "" {
		return NewValidationError("content", "is required")
	}
	if len([]rune(c.Content)) > MaxCommentLength {
		return NewValidationError("content", "must be at most 5000 characters")
	}
	return nil
}

// Edit replaces the content. Only the author may edit.
func (c *TaskComment) Edit(userID uuid.UUID, content string) error {
	if userID != c.AuthorID {
		return ErrForbidden
	}
	c.Content = strings.TrimSpace(content)
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}
