package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 12 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
	ErrInvalidRole         = errors.New("invalid role")
)

// Role controls what a user may do beyond their own tasks.
type Role string

// Possible roles
const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// NotificationPreferences toggles chat notifications per event type.
type NotificationPreferences struct {
	TaskAssignments  bool `json:"task_assignments"`
	DueDateReminders bool `json:"due_date_reminders"`
	TaskCompletions  bool `json:"task_completions"`
	DailySummaries   bool `json:"daily_summaries"`
}

// DefaultNotificationPreferences enables everything except daily summaries.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		TaskAssignments:  true,
		DueDateReminders: true,
		TaskCompletions:  true,
		DailySummaries:   false,
	}
}

// User represents a registered user and their chat notification settings.
type User struct {
	ID             uuid.UUID               `json:"id"`
	Username       string                  `json:"username"`
	Email          string                  `json:"email"`
	Password       string                  `json:"-"` // Plaintext password, used temporarily during registration/updates
	HashedPassword string                  `json:"-"`
	Role           Role                    `json:"role"`
	ChatUserID     *string                 `json:"chat_user_id,omitempty"`
	ChatEnabled    bool                    `json:"chat_enabled"`
	Preferences    NotificationPreferences `json:"notification_preferences"`
	LastLoginAt    *time.Time              `json:"last_login_at,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// NewUser creates a new User with the given username, email and password.
//
// NOTE: This function only sets up the user structure with the plaintext password.
// The caller is responsible for hashing the password before storing the user.
func NewUser(username, email, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:          uuid.New(),
		Username:    strings.TrimSpace(username),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Password:    password,
		Role:        RoleUser,
		Preferences: DefaultNotificationPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Username == "" {
		return ErrEmptyUsername
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	if !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}

	switch u.Role {
	case RoleUser, RoleManager, RoleAdmin:
	default:
		return ErrInvalidRole
	}

	if u.Password != "" {
		return ValidatePassword(u.Password)
	}
	if u.HashedPassword == "" {
		return ErrEmptyHashedPassword
	}

	return nil
}

// ValidatePassword checks the length bounds of a plaintext password.
// 72 bytes is bcrypt's input limit.
func ValidatePassword(password string) error {
	switch {
	case len(password) < 12:
		return ErrPasswordTooShort
	case len(password) > 72:
		return ErrPasswordTooLong
	default:
		return nil
	}
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ChatHandle returns the chat mention handle: the linked chat user ID when
// present, the username otherwise.
func (u *User) ChatHandle() string {
	if u.ChatUserID != nil && *u.ChatUserID != "" {
		return *u.ChatUserID
	}
	return u.Username
}

// DirectChannel returns the private channel for the user, or "" when the user
// has not linked a chat account.
func (u *User) DirectChannel() string {
	if u.ChatUserID == nil || *u.ChatUserID == "" {
		return ""
	}
	return "@" + *u.ChatUserID
}

// validateEmailFormat performs basic validation of email format: a non-empty
// local part, an @, and a dotted domain.
func validateEmailFormat(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domainPart := email[at+1:]
	if len(domainPart) < 3 {
		return false
	}

	dot := strings.IndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}
