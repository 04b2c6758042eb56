package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserStore_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresUserStore(db, nil)

	user, err := domain.NewUser("ada", "Ada@Example.com", "correct-horse-battery")
	require.NoError(t, err)
	user.Password = ""
	user.HashedPassword = "$2a$10$hash"

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err = s.Create(context.Background(), user)
	assert.ErrorIs(t, err, store.ErrEmailExists)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestUserStore_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresUserStore(db, nil)

	mock.ExpectQuery("FROM users WHERE email = LOWER\\(\\$1\\)").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestCategoryStore_Create_DuplicateName(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresCategoryStore(db, nil)

	category, err := domain.NewCategory(uuid.New(), "Work", "", "", "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO categories").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "categories_owner_name_key"})

	assert.ErrorIs(t, s.Create(context.Background(), category), store.ErrCategoryExists)
}

func TestCommentStore_Create_UnknownTask(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresCommentStore(db, nil)

	comment, err := domain.NewTaskComment(uuid.New(), uuid.New(), "looks good")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO task_comments").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "task_comments_task_id_fkey"})

	assert.ErrorIs(t, s.Create(context.Background(), comment), store.ErrTaskNotFound)
}

func TestHistoryStore_Append_FailureIsPersistence(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresHistoryStore(db, nil)

	taskID, actor := uuid.New(), uuid.New()
	first := domain.NewTaskHistory(taskID, actor, domain.HistoryActionUpdated, domain.Provenance{}).
		WithField("title", "a", "b")
	second := domain.NewTaskHistory(taskID, actor, domain.HistoryActionUpdated, domain.Provenance{}).
		WithField("priority", "low", "high")

	mock.ExpectExec("INSERT INTO task_history").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO task_history").WillReturnError(sql.ErrConnDone)

	err := s.Append(context.Background(), first, second)
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_ListByTask_OrderedBySequence(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresHistoryStore(db, nil)
	taskID, actor := uuid.New(), uuid.New()
	now := time.Now().UTC()

	cols := []string{
		"id", "task_id", "actor_id", "action", "field_name", "old_value", "new_value",
		"ip_address", "user_agent", "chat_notified", "chat_thread_ts", "created_at",
	}
	mock.ExpectQuery("ORDER BY seq ASC").
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.NewString(), taskID.String(), actor.String(), "created", nil, nil, nil, "", "", false, nil, now).
			AddRow(uuid.NewString(), taskID.String(), actor.String(), "updated", "title", "a", "b", "10.0.0.1", "curl", true, nil, now))

	entries, err := s.ListByTask(context.Background(), taskID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.HistoryActionCreated, entries[0].Action)
	assert.Nil(t, entries[0].FieldName)
	require.NotNil(t, entries[1].FieldName)
	assert.Equal(t, "title", *entries[1].FieldName)
	assert.True(t, entries[1].ChatNotified)
}

func TestResetTokenStore_Consume(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresResetTokenStore(db, nil)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE password_reset_tokens").
		WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "user_id", "expires_at", "used_at", "created_at"}).
			AddRow("abc", userID.String(), now.Add(time.Hour), now, now.Add(-time.Hour)))

	token, err := s.Consume(context.Background(), "abc", now)
	require.NoError(t, err)
	assert.Equal(t, userID, token.UserID)
	require.NotNil(t, token.UsedAt)

	mock.ExpectQuery("UPDATE password_reset_tokens").
		WithArgs("abc", now).
		WillReturnError(sql.ErrNoRows)

	_, err = s.Consume(context.Background(), "abc", now)
	assert.ErrorIs(t, err, store.ErrTokenNotFound)
}
