package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const userColumns = `
	id, username, email, hashed_password, role, chat_user_id, chat_enabled,
	notify_assignments, notify_due_dates, notify_completions, notify_daily_summary,
	last_login_at, created_at, updated_at`

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create.
// The plaintext password must already be cleared and HashedPassword set.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.Role,
		user.ChatUserID,
		user.ChatEnabled,
		user.Preferences.TaskAssignments,
		user.Preferences.DueDateReminders,
		user.Preferences.TaskCompletions,
		user.Preferences.DailySummaries,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// Email is deliberately not logged.
		log.Warn("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return mapStoreError("create user", err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail implements store.UserStore.GetByEmail.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
}

// GetByChatUserID implements store.UserStore.GetByChatUserID.
func (s *PostgresUserStore) GetByChatUserID(ctx context.Context, chatUserID string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE chat_user_id = $1`, chatUserID)
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, mapStoreError("get user", err)
	}
	return user, nil
}

// ListChatEnabled implements store.UserStore.ListChatEnabled.
func (s *PostgresUserStore) ListChatEnabled(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE chat_enabled = TRUE
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, mapStoreError("list chat users", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapStoreError("list chat users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list chat users", err)
	}
	return users, nil
}

// Update implements store.UserStore.Update.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			username = $2, email = $3, hashed_password = $4, role = $5,
			chat_user_id = $6, chat_enabled = $7, notify_assignments = $8,
			notify_due_dates = $9, notify_completions = $10, notify_daily_summary = $11,
			last_login_at = $12, updated_at = $13
		WHERE id = $1
	`,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.Role,
		user.ChatUserID,
		user.ChatEnabled,
		user.Preferences.TaskAssignments,
		user.Preferences.DueDateReminders,
		user.Preferences.TaskCompletions,
		user.Preferences.DailySummaries,
		user.LastLoginAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapStoreError("update user", err)
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		chatID    sql.NullString
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&user.Role,
		&chatID,
		&user.ChatEnabled,
		&user.Preferences.TaskAssignments,
		&user.Preferences.DueDateReminders,
		&user.Preferences.TaskCompletions,
		&user.Preferences.DailySummaries,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.ChatUserID = nullStringPtr(chatID)
	user.LastLoginAt = nullTimePtr(lastLogin)
	return &user, nil
}
