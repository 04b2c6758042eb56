package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskColumnNames = []string{
	"id", "title", "description", "due_date", "priority", "status", "owner_id", "created_by_id",
	"assigned_to_id", "completed_by_id", "category_id", "completed_at", "estimated_hours",
	"actual_hours", "tags", "chat_thread_ts", "chat_channel_id", "chat_message_ts",
	"version", "created_at", "updated_at",
}

func newMockTaskStore(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresTaskStore(db, nil), mock
}

func testTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), domain.NewTaskParams{
		Title:    "Write report",
		DueDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Priority: domain.PriorityHigh,
		Tags:     []string{"q1", "finance"},
	})
	require.NoError(t, err)
	return task
}

func taskRow(task *domain.Task) []driver.Value {
	return []driver.Value{
		task.ID.String(), task.Title, task.Description, task.DueDate, string(task.Priority), string(task.Status),
		task.OwnerID.String(), task.CreatedByID.String(), task.AssignedToID.String(), nil, nil, nil, nil,
		nil, "q1,finance", nil, nil, nil,
		task.Version, task.CreatedAt, task.UpdatedAt,
	}
}

func TestNewPostgresTaskStore_NilDBPanics(t *testing.T) {
	assert.Panics(t, func() { NewPostgresTaskStore(nil, nil) })
}

func TestTaskStore_Create(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(
			task.ID, task.Title, task.Description, task.DueDate, task.Priority, task.Status,
			task.OwnerID, task.CreatedByID, task.AssignedToID, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "q1,finance",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 1, task.CreatedAt, task.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_Create_InvalidTaskSkipsDatabase(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)
	task.Title = ""

	err := s.Create(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_Create_DriverErrorIsPersistence(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectExec("INSERT INTO tasks").WillReturnError(sql.ErrConnDone)

	err := s.Create(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestTaskStore_GetByID(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectQuery("SELECT .* FROM tasks WHERE id = \\$1$").
		WithArgs(task.ID).
		WillReturnRows(sqlmock.NewRows(taskColumnNames).AddRow(taskRow(task)...))

	got, err := s.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"q1", "finance"}, got.Tags)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.CategoryID)
}

func TestTaskStore_GetByID_NotFound(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM tasks").WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_GetForUpdate_LocksRow(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectQuery("FOR UPDATE").
		WithArgs(task.ID).
		WillReturnRows(sqlmock.NewRows(taskColumnNames).AddRow(taskRow(task)...))

	_, err := s.GetForUpdate(context.Background(), task.ID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_Update_IncrementsVersion(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectExec("UPDATE tasks SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(context.Background(), task))
	assert.Equal(t, 2, task.Version)
}

func TestTaskStore_Update_StaleVersionConflicts(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectExec("UPDATE tasks SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(task.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.Update(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 1, task.Version)
}

func TestTaskStore_Update_MissingRowNotFound(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)

	mock.ExpectExec("UPDATE tasks SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(task.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.Update(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_Delete(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM tasks").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), id), store.ErrTaskNotFound)

	mock.ExpectExec("DELETE FROM tasks").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.Delete(context.Background(), id))
}

func TestTaskStore_List_FiltersAndPaginates(t *testing.T) {
	s, mock := newMockTaskStore(t)
	owner := uuid.New()
	task := testTask(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tasks WHERE owner_id = \\$1 AND status = \\$2 AND priority = \\$3").
		WithArgs(owner, domain.TaskStatusPending, domain.PriorityHigh).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("ORDER BY CASE priority .* DESC, id ASC LIMIT \\$4 OFFSET \\$5").
		WithArgs(owner, domain.TaskStatusPending, domain.PriorityHigh, 2, 2).
		WillReturnRows(sqlmock.NewRows(taskColumnNames).AddRow(taskRow(task)...))

	page, err := s.List(context.Background(), owner, store.TaskFilter{
		Status:     domain.TaskStatusPending,
		Priority:   domain.PriorityHigh,
		Sort:       store.SortByPriority,
		Descending: true,
		Page:       2,
		PerPage:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_FindDueBefore(t *testing.T) {
	s, mock := newMockTaskStore(t)
	task := testTask(t)
	before := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("status IN \\('pending', 'in-progress'\\) AND due_date < \\$1").
		WithArgs(before).
		WillReturnRows(sqlmock.NewRows(taskColumnNames).AddRow(taskRow(task)...))

	tasks, err := s.FindDueBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestTaskStore_ArchiveCompletedBefore(t *testing.T) {
	s, mock := newMockTaskStore(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET status = 'archived'").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.ArchiveCompletedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestTaskStore_Stats(t *testing.T) {
	s, mock := newMockTaskStore(t)
	owner := uuid.New()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("COUNT\\(\\*\\) FILTER").
		WithArgs(owner, today, today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h"}).
			AddRow(3, 1, 1, 1, 1, 0, 1, 2))

	stats, err := s.Stats(context.Background(), owner, now)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.HighPriority)
	assert.InDelta(t, 33.3, stats.CompletionRate, 0.001)
}
