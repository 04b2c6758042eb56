package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresResetTokenStore implements store.ResetTokenStore.
type PostgresResetTokenStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResetTokenStore creates a new PostgreSQL ResetTokenStore.
func NewPostgresResetTokenStore(db store.DBTX, logger *slog.Logger) *PostgresResetTokenStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresResetTokenStore{
		db:     db,
		logger: logger.With(slog.String("component", "reset_token_store")),
	}
}

var _ store.ResetTokenStore = (*PostgresResetTokenStore)(nil)

// WithTx implements store.ResetTokenStore.WithTx.
func (s *PostgresResetTokenStore) WithTx(tx *sql.Tx) store.ResetTokenStore {
	return &PostgresResetTokenStore{db: tx, logger: s.logger}
}

// Save implements store.ResetTokenStore.Save.
func (s *PostgresResetTokenStore) Save(ctx context.Context, token *store.ResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return mapStoreError("save reset token", err)
	}
	return nil
}

// Consume implements store.ResetTokenStore.Consume. The single UPDATE makes a
// token usable at most once even under concurrent requests.
func (s *PostgresResetTokenStore) Consume(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (*store.ResetToken, error) {
	var (
		token  store.ResetToken
		usedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING token_hash, user_id, expires_at, used_at, created_at
	`, tokenHash, now.UTC()).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.ExpiresAt,
		&usedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTokenNotFound
		}
		return nil, mapStoreError("consume reset token", err)
	}
	token.UsedAt = &usedAt
	return &token, nil
}

// DeleteExpired implements store.ResetTokenStore.DeleteExpired.
func (s *PostgresResetTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, mapStoreError("delete expired reset tokens", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewPersistenceError("delete expired reset tokens", err)
	}
	if n > 0 {
		s.logger.Info("expired reset tokens removed", slog.Int64("count", n))
	}
	return n, nil
}
