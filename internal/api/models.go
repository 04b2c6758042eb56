package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/tracker"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`

	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token"`

	// RefreshToken is the JWT token used to obtain new access tokens
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the ISO 8601 timestamp when the access token expires
	ExpiresAt string `json:"expires_at,omitempty"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse defines the successful response for the token refresh endpoint.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// ChangePasswordRequest replaces the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=12,max=72"`
}

// CreateTaskRequest is the body of POST /tasks. DueDate accepts RFC 3339 or
// a plain 2006-01-02 date.
type CreateTaskRequest struct {
	Title          string     `json:"title"           validate:"required,max=200"`
	Description    string     `json:"description"`
	DueDate        string     `json:"due_date"        validate:"required"`
	Priority       string     `json:"priority"        validate:"omitempty,oneof=low medium high critical"`
	AssignedToID   *uuid.UUID `json:"assigned_to_id"`
	CategoryID     *uuid.UUID `json:"category_id"`
	EstimatedHours *float64   `json:"estimated_hours" validate:"omitempty,gte=0"`
	Tags           []string   `json:"tags"`
}

// UpdateTaskRequest is the body of PATCH /tasks/{id}. Absent fields are left alone.
type UpdateTaskRequest struct {
	Title          *string    `json:"title"           validate:"omitempty,max=200"`
	Description    *string    `json:"description"`
	DueDate        *string    `json:"due_date"`
	Priority       *string    `json:"priority"        validate:"omitempty,oneof=low medium high critical"`
	Status         *string    `json:"status"`
	AssignedToID   *uuid.UUID `json:"assigned_to_id"`
	CategoryID     *uuid.UUID `json:"category_id"`
	EstimatedHours *float64   `json:"estimated_hours" validate:"omitempty,gte=0"`
	ActualHours    *float64   `json:"actual_hours"    validate:"omitempty,gte=0"`
	Tags           *[]string  `json:"tags"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        time.Time  `json:"due_date"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	OwnerID        string     `json:"owner_id"`
	CreatedByID    string     `json:"created_by_id"`
	AssignedToID   string     `json:"assigned_to_id"`
	CompletedByID  *string    `json:"completed_by_id,omitempty"`
	CategoryID     *string    `json:"category_id,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Tags           []string   `json:"tags"`
	IsOverdue      bool       `json:"is_overdue"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UpdateTaskResponse returns the task and the field changes that were applied.
type UpdateTaskResponse struct {
	Task    TaskResponse     `json:"task"`
	Changes []tracker.Change `json:"changes"`
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Items   []TaskResponse `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	HasMore bool           `json:"has_more"`
}

// HistoryResponse is one audit row.
type HistoryResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	FieldName *string   `json:"field_name,omitempty"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentRequest is the body for adding or editing a comment.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// CategoryRequest is the body for creating or updating a category.
type CategoryRequest struct {
	Name        string `json:"name"        validate:"omitempty,max=100"`
	Description string `json:"description"`
	Color       string `json:"color"       validate:"omitempty,hexcolor"`
	Icon        string `json:"icon"        validate:"omitempty,max=50"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID          string                         `json:"id"`
	Username    string                         `json:"username"`
	Email       string                         `json:"email"`
	Role        string                         `json:"role"`
	ChatEnabled bool                           `json:"chat_enabled"`
	ChatUserID  *string                        `json:"chat_user_id,omitempty"`
	Preferences domain.NotificationPreferences `json:"preferences"`
	LastLoginAt *time.Time                     `json:"last_login_at,omitempty"`
}

// ChatSettingsRequest updates chat linkage and notification preferences.
type ChatSettingsRequest struct {
	Enabled     *bool                           `json:"enabled"`
	ChatUserID  *string                         `json:"chat_user_id" validate:"omitempty,max=50"`
	Preferences *domain.NotificationPreferences `json:"preferences"`
}

// SweepResponse acknowledges a triggered sweep.
type SweepResponse struct {
	Sweep   string `json:"sweep"`
	Started bool   `json:"started"`
}

func taskToResponse(t *domain.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:             t.ID.String(),
		Title:          t.Title,
		Description:    t.Description,
		DueDate:        t.DueDate,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		OwnerID:        t.OwnerID.String(),
		CreatedByID:    t.CreatedByID.String(),
		AssignedToID:   t.AssignedToID.String(),
		CompletedAt:    t.CompletedAt,
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
		Tags:           t.Tags,
		IsOverdue:      t.IsOverdue(now),
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if t.CompletedByID != nil {
		s := t.CompletedByID.String()
		resp.CompletedByID = &s
	}
	if t.CategoryID != nil {
		s := t.CategoryID.String()
		resp.CategoryID = &s
	}
	return resp
}

func pageToResponse(p store.Page[*domain.Task], now time.Time) TaskListResponse {
	resp := TaskListResponse{
		Items:   make([]TaskResponse, 0, len(p.Items)),
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
		HasMore: p.HasMore,
	}
	for _, t := range p.Items {
		resp.Items = append(resp.Items, taskToResponse(t, now))
	}
	return resp
}

func historyToResponse(h *domain.TaskHistory) HistoryResponse {
	return HistoryResponse{
		ID:        h.ID.String(),
		ActorID:   h.ActorID.String(),
		Action:    string(h.Action),
		FieldName: h.FieldName,
		OldValue:  h.OldValue,
		NewValue:  h.NewValue,
		CreatedAt: h.CreatedAt,
	}
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		ChatEnabled: u.ChatEnabled,
		ChatUserID:  u.ChatUserID,
		Preferences: u.Preferences,
		LastLoginAt: u.LastLoginAt,
	}
}
