//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"golang.org/x/crypto/bcrypt"
)

// MustInsertUser stores a user with a unique email and returns it.
func MustInsertUser(ctx context.Context, t *testing.T, tx *sql.Tx, opts ...func(*domain.User)) *domain.User {
	t.Helper()

	tag := uuid.NewString()[:8]
	user, err := domain.NewUser("user-"+tag, fmt.Sprintf("user-%s@example.com", tag), "password-"+tag)
	if err != nil {
		t.Fatalf("invalid fixture user: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash fixture password: %v", err)
	}
	user.HashedPassword = string(hash)
	user.Password = ""
	for _, opt := range opts {
		opt(user)
	}

	if err := postgres.NewPostgresUserStore(tx, nil).Create(ctx, user); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return user
}

// MustInsertTask stores an open task owned by owner and due at due.
func MustInsertTask(ctx context.Context, t *testing.T, tx *sql.Tx, owner *domain.User, title string, due time.Time, opts ...func(*domain.Task)) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(owner.ID, domain.NewTaskParams{Title: title, DueDate: due})
	if err != nil {
		t.Fatalf("invalid fixture task: %v", err)
	}
	for _, opt := range opts {
		opt(task)
	}

	if err := postgres.NewPostgresTaskStore(tx, nil).Create(ctx, task); err != nil {
		t.Fatalf("failed to insert task: %v", err)
	}
	return task
}
