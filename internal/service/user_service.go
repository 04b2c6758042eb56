package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/platform/mail"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// ChatSettings is a partial update of a user's chat integration settings.
// Nil fields are left alone; an empty ChatUserID unlinks the account.
type ChatSettings struct {
	Enabled     *bool
	ChatUserID  *string
	Preferences *domain.NotificationPreferences
}

// UserService provides registration, authentication, password reset and the
// chat settings of a user.
type UserService interface {
	// Register creates a user with a hashed password.
	Register(ctx context.Context, username, email, password string) (*domain.User, error)

	// Authenticate checks credentials and records the login time.
	// Returns auth.ErrInvalidCredentials for an unknown email or wrong password.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// Get retrieves a user by ID.
	Get(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// GetByChatUserID resolves the user linked to a chat account.
	// Returns ErrChatNotLinked when no user is linked.
	GetByChatUserID(ctx context.Context, chatUserID string) (*domain.User, error)

	// UpdateChatSettings applies settings and returns the updated user.
	UpdateChatSettings(ctx context.Context, userID uuid.UUID, settings ChatSettings) (*domain.User, error)

	// ChangePassword replaces the password after verifying the current one.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error

	// RequestPasswordReset emails a reset link. Unknown emails succeed silently.
	RequestPasswordReset(ctx context.Context, email string) error

	// ResetPassword consumes a reset token and sets the new password.
	ResetPassword(ctx context.Context, token, password string) error
}

// UserServiceDeps are the collaborators of the user service.
type UserServiceDeps struct {
	DB          store.Beginner
	Users       store.UserStore
	ResetTokens store.ResetTokenStore
	Hasher      auth.PasswordHasher
	Mailer      mail.Mailer
	// ResetTokenTTL bounds how long an emailed reset link stays valid.
	ResetTokenTTL time.Duration
	// FrontendURL is the base of the emailed reset link.
	FrontendURL string
}

type userServiceImpl struct {
	db          store.Beginner
	users       store.UserStore
	resetTokens store.ResetTokenStore
	hasher      auth.PasswordHasher
	mailer      mail.Mailer
	resetTTL    time.Duration
	frontendURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(deps UserServiceDeps, logger *slog.Logger) (UserService, error) {
	switch {
	case deps.DB == nil:
		return nil, domain.NewValidationError("db", "cannot be nil")
	case deps.Users == nil:
		return nil, domain.NewValidationError("users", "cannot be nil")
	case deps.ResetTokens == nil:
		return nil, domain.NewValidationError("reset_tokens", "cannot be nil")
	case deps.Hasher == nil:
		return nil, domain.NewValidationError("hasher", "cannot be nil")
	case deps.Mailer == nil:
		return nil, domain.NewValidationError("mailer", "cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.ResetTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &userServiceImpl{
		db:          deps.DB,
		users:       deps.Users,
		resetTokens: deps.ResetTokens,
		hasher:      deps.Hasher,
		mailer:      deps.Mailer,
		resetTTL:    ttl,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With(slog.String("component", "user_service")),
	}, nil
}

// Register implements UserService.
func (s *userServiceImpl) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(username, email, password)
	if err != nil {
		return nil, NewUserServiceError("register", "invalid user", asValidation(err))
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, NewUserServiceError("register", "failed to hash password", err)
	}
	user.HashedPassword = hash
	user.Password = ""

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("registration rejected, duplicate user")
		} else {
			log.Error("failed to create user", slog.String("error", redact.Error(err)))
		}
		return nil, NewUserServiceError("register", "failed to create user", err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate implements UserService.
func (s *userServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, NewUserServiceError("authenticate", "failed to load user", err)
	}
	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		log.Debug("password mismatch", slog.String("user_id", user.ID.String()))
		return nil, auth.ErrInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		log.Warn("failed to record login time",
			slog.String("user_id", user.ID.String()),
			slog.String("error", redact.Error(err)))
	}
	return user, nil
}

// Get implements UserService.
func (s *userServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, NewUserServiceError("get", "user not found", err)
	}
	return user, nil
}

// GetByChatUserID implements UserService.
func (s *userServiceImpl) GetByChatUserID(ctx context.Context, chatUserID string) (*domain.User, error) {
	chatUserID = strings.TrimSpace(chatUserID)
	if chatUserID == "" {
		return nil, ErrChatNotLinked
	}
	user, err := s.users.GetByChatUserID(ctx, chatUserID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrChatNotLinked
		}
		return nil, NewUserServiceError("get_by_chat_user", "failed to load user", err)
	}
	return user, nil
}

// UpdateChatSettings implements UserService.
func (s *userServiceImpl) UpdateChatSettings(
	ctx context.Context,
	userID uuid.UUID,
	settings ChatSettings,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var user *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)

		u, err := users.GetByID(ctx, userID)
		if err != nil {
			return NewUserServiceError("update_chat_settings", "user not found", err)
		}

		if settings.ChatUserID != nil {
			id := strings.TrimSpace(*settings.ChatUserID)
			if id == "" {
				u.ChatUserID = nil
			} else {
				other, err := users.GetByChatUserID(ctx, id)
				switch {
				case err == nil && other.ID != userID:
					return NewUserServiceError("update_chat_settings", "chat account linked to another user",
						fmt.Errorf("%w: chat user id", store.ErrDuplicate))
				case err != nil && !store.IsNotFoundError(err):
					return NewUserServiceError("update_chat_settings", "failed to check chat account", err)
				}
				u.ChatUserID = &id
			}
		}
		if settings.Enabled != nil {
			u.ChatEnabled = *settings.Enabled
		}
		if settings.Preferences != nil {
			u.Preferences = *settings.Preferences
		}
		u.UpdatedAt = s.now()

		if err := users.Update(ctx, u); err != nil {
			return NewUserServiceError("update_chat_settings", "failed to save user", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("chat settings updated",
		slog.String("user_id", userID.String()),
		slog.Bool("chat_enabled", user.ChatEnabled),
		slog.Bool("linked", user.ChatUserID != nil))
	return user, nil
}

// ChangePassword implements UserService.
func (s *userServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := domain.ValidatePassword(next); err != nil {
		return NewUserServiceError("change_password", "invalid password", asValidation(err))
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		u, err := users.GetByID(ctx, userID)
		if err != nil {
			return NewUserServiceError("change_password", "user not found", err)
		}
		if err := s.hasher.Compare(u.HashedPassword, current); err != nil {
			return auth.ErrInvalidCredentials
		}
		return s.setPassword(ctx, users, u, next, "change_password")
	})
}

// RequestPasswordReset implements UserService.
func (s *userServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return NewUserServiceError("request_password_reset", "failed to load user", err)
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return NewUserServiceError("request_password_reset", "failed to generate token", err)
	}
	now := s.now()
	if err := s.resetTokens.Save(ctx, &store.ResetToken{
		TokenHash: hash,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}); err != nil {
		return NewUserServiceError("request_password_reset", "failed to save token", err)
	}

	link := s.frontendURL + "/reset-password?token=" + token
	err = s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset your Taskflow password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n\n"+
			"If you did not ask for this, you can ignore this email.\n", user.Username, s.resetTTL, link),
	})
	if err != nil {
		log.Error("failed to send password reset email",
			slog.String("user_id", user.ID.String()),
			slog.String("error", redact.Error(err)))
		return NewUserServiceError("request_password_reset", "failed to send email", err)
	}

	log.Info("password reset requested", slog.String("user_id", user.ID.String()))
	return nil
}

// ResetPassword implements UserService.
func (s *userServiceImpl) ResetPassword(ctx context.Context, token, password string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return NewUserServiceError("reset_password", "invalid password", asValidation(err))
	}
	if strings.TrimSpace(token) == "" {
		return NewUserServiceError("reset_password", "missing token", domain.NewValidationError("token", "is required"))
	}

	var userID uuid.UUID
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		grant, err := s.resetTokens.WithTx(tx).Consume(ctx, auth.HashResetToken(token), s.now())
		if err != nil {
			if store.IsNotFoundError(err) {
				return NewUserServiceError("reset_password", "invalid token",
					domain.NewValidationError("token", "is invalid or expired"))
			}
			return NewUserServiceError("reset_password", "failed to consume token", err)
		}
		users := s.users.WithTx(tx)
		u, err := users.GetByID(ctx, grant.UserID)
		if err != nil {
			return NewUserServiceError("reset_password", "user not found", err)
		}
		userID = u.ID
		return s.setPassword(ctx, users, u, password, "reset_password")
	})
	if err != nil {
		return err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("password reset", slog.String("user_id", userID.String()))
	return nil
}

func (s *userServiceImpl) setPassword(ctx context.Context, users store.UserStore, u *domain.User, password, op string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return NewUserServiceError(op, "failed to hash password", err)
	}
	u.HashedPassword = hash
	u.Password = ""
	u.UpdatedAt = s.now()
	if err := users.Update(ctx, u); err != nil {
		return NewUserServiceError(op, "failed to save user", err)
	}
	return nil
}

// asValidation folds the user package's plain sentinel errors into the
// validation taxonomy so the API reports them as 400s.
func asValidation(err error) error {
	if domain.IsValidationError(err) {
		return err
	}
	var field string
	switch {
	case errors.Is(err, domain.ErrEmptyUsername):
		field = "username"
	case errors.Is(err, domain.ErrEmptyEmail), errors.Is(err, domain.ErrInvalidEmail):
		field = "email"
	case errors.Is(err, domain.ErrPasswordTooShort), errors.Is(err, domain.ErrPasswordTooLong):
		field = "password"
	default:
		return err
	}
	return domain.NewValidationError(field, err.Error())
}
