package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ResetToken is a stored password-reset grant. Only the SHA-256 hash of the
// token handed to the user is persisted.
type ResetToken struct {
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// ResetTokenStore persists expiring password-reset tokens keyed by hash.
type ResetTokenStore interface {
	// Save stores a new token.
	Save(ctx context.Context, token *ResetToken) error

	// Consume marks the unexpired, unused token with the given hash as used
	// and returns it. Returns ErrTokenNotFound when no such token exists.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// WithTx returns a ResetTokenStore bound to the provided transaction.
	WithTx(tx *sql.Tx) ResetTokenStore
}
