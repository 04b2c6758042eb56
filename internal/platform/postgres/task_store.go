package postgres

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
	"github.com/phrazzld/taskflow-api/internal/store"
)

const taskColumns = `
	id, title, description, due_date, priority, status, owner_id, created_by_id,
	assigned_to_id, completed_by_id, category_id, completed_at, estimated_hours,
	actual_hours, tags, chat_thread_ts, chat_channel_id, chat_message_ts,
	version, created_at, updated_at`

// priorityWeightSQL orders rows by priority the same way domain.Priority.Weight does.
const priorityWeightSQL = `CASE priority
	WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

var taskSortColumns = map[store.TaskSortField]string{
	store.SortByDueDate:   "due_date",
	store.SortByPriority:  priorityWeightSQL,
	store.SortByCreatedAt: "created_at",
	store.SortByUpdatedAt: "updated_at",
	store.SortByTitle:     "title",
}

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, the default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.DueDate,
		task.Priority,
		task.Status,
		task.OwnerID,
		task.CreatedByID,
		task.AssignedToID,
		task.CompletedByID,
		task.CategoryID,
		task.CompletedAt,
		task.EstimatedHours,
		task.ActualHours,
		joinTags(task.Tags),
		task.ChatThreadTS,
		task.ChatChannelID,
		task.ChatMessageTS,
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return mapStoreError("create task", err)
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, id, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`)
}

// GetForUpdate implements store.TaskStore.GetForUpdate.
func (s *PostgresTaskStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, id, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`)
}

func (s *PostgresTaskStore) get(ctx context.Context, id uuid.UUID, query string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, mapStoreError("get task", err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE tasks SET
			title = $3, description = $4, due_date = $5, priority = $6, status = $7,
			assigned_to_id = $8, completed_by_id = $9, category_id = $10, completed_at = $11,
			estimated_hours = $12, actual_hours = $13, tags = $14, chat_thread_ts = $15,
			chat_channel_id = $16, chat_message_ts = $17, updated_at = $18,
			version = version + 1
		WHERE id = $1 AND version = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Version,
		task.Title,
		task.Description,
		task.DueDate,
		task.Priority,
		task.Status,
		task.AssignedToID,
		task.CompletedByID,
		task.CategoryID,
		task.CompletedAt,
		task.EstimatedHours,
		task.ActualHours,
		joinTags(task.Tags),
		task.ChatThreadTS,
		task.ChatChannelID,
		task.ChatMessageTS,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return mapStoreError("update task", err)
	}

	if err := CheckRowsAffected(result, store.ErrConflict); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return store.NewPersistenceError("update task", err)
		}
		// Either the row vanished or another writer bumped the version.
		var exists bool
		if qerr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID,
		).Scan(&exists); qerr != nil {
			return mapStoreError("update task", qerr)
		}
		if !exists {
			return store.ErrTaskNotFound
		}
		log.Warn("task version conflict",
			slog.String("task_id", task.ID.String()),
			slog.Int("version", task.Version))
		return fmt.Errorf("%w: task %s at version %d", store.ErrConflict, task.ID, task.Version)
	}

	task.Version++
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapStoreError("delete task", err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.TaskFilter,
) (store.Page[*domain.Task], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	filter = filter.Normalize()

	where, args := taskFilterClause(ownerID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return store.Page[*domain.Task]{}, mapStoreError("list tasks", err)
	}

	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		taskColumns, where, taskSortColumns[filter.Sort], direction, len(args)+1, len(args)+2,
	)
	args = append(args, filter.PerPage, filter.Offset())

	tasks, err := s.query(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return store.Page[*domain.Task]{}, mapStoreError("list tasks", err)
	}

	return store.NewPage(tasks, total, filter), nil
}

// taskFilterClause renders the WHERE clause for a listing with positional args.
func taskFilterClause(ownerID uuid.UUID, f store.TaskFilter) (string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.CategoryID != nil {
		add("category_id = $%d", *f.CategoryID)
	}
	if f.AssignedToID != nil {
		add("assigned_to_id = $%d", *f.AssignedToID)
	}
	return strings.Join(conds, " AND "), args
}

// FindDueBefore implements store.TaskStore.FindDueBefore.
func (s *PostgresTaskStore) FindDueBefore(ctx context.Context, before time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status IN ('pending', 'in-progress') AND due_date < $1
		ORDER BY due_date ASC, id ASC
	`
	tasks, err := s.query(ctx, query, before.UTC())
	if err != nil {
		return nil, mapStoreError("find due tasks", err)
	}
	return tasks, nil
}

// ArchiveCompletedBefore implements store.TaskStore.ArchiveCompletedBefore.
func (s *PostgresTaskStore) ArchiveCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'archived', updated_at = NOW(), version = version + 1
		WHERE status = 'completed' AND completed_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, mapStoreError("archive tasks", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewPersistenceError("archive tasks", err)
	}
	return n, nil
}

// ReassignCategory implements store.TaskStore.ReassignCategory.
func (s *PostgresTaskStore) ReassignCategory(ctx context.Context, from, to uuid.UUID) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET category_id = $2, updated_at = NOW(), version = version + 1
		WHERE category_id = $1
	`, from, to)
	if err != nil {
		return 0, mapStoreError("reassign category", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewPersistenceError("reassign category", err)
	}
	return n, nil
}

// Stats implements store.TaskStore.Stats.
func (s *PostgresTaskStore) Stats(ctx context.Context, ownerID uuid.UUID, now time.Time) (domain.TaskStats, error) {
	today := domain.DayStart(now)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('completed', 'archived')),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in-progress'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'in-progress') AND due_date < $2),
			COUNT(*) FILTER (WHERE due_date >= $2 AND due_date < $3),
			COUNT(*) FILTER (WHERE due_date >= $3 AND due_date < $4),
			COUNT(*) FILTER (WHERE status IN ('pending', 'in-progress') AND priority IN ('high', 'critical'))
		FROM tasks
		WHERE owner_id = $1
	`
	var stats domain.TaskStats
	err := s.db.QueryRowContext(ctx, query, ownerID, today, tomorrow, dayAfter).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Pending,
		&stats.InProgress,
		&stats.Overdue,
		&stats.DueToday,
		&stats.DueTomorrow,
		&stats.HighPriority,
	)
	if err != nil {
		return domain.TaskStats{}, mapStoreError("task stats", err)
	}
	stats.FinalizeRate()
	return stats, nil
}

// DailySummary implements store.TaskStore.DailySummary.
func (s *PostgresTaskStore) DailySummary(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) (domain.DailySummary, error) {
	today := domain.DayStart(now)
	tomorrow := today.AddDate(0, 0, 1)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE completed_at >= $2 AND completed_at < $3),
			COUNT(*) FILTER (WHERE status IN ('pending', 'in-progress')),
			COUNT(*) FILTER (WHERE status IN ('pending', 'in-progress') AND due_date < $2),
			COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3)
		FROM tasks
		WHERE assigned_to_id = $1
	`
	var summary domain.DailySummary
	err := s.db.QueryRowContext(ctx, query, userID, today, tomorrow).Scan(
		&summary.CompletedToday,
		&summary.Open,
		&summary.Overdue,
		&summary.CreatedToday,
	)
	if err != nil {
		return domain.DailySummary{}, mapStoreError("daily summary", err)
	}
	return summary, nil
}

func (s *PostgresTaskStore) query(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		completedBy uuid.NullUUID
		category    uuid.NullUUID
		completedAt sql.NullTime
		estimated   sql.NullFloat64
		actual      sql.NullFloat64
		tags        string
		threadTS    sql.NullString
		channelID   sql.NullString
		messageTS   sql.NullString
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Priority,
		&task.Status,
		&task.OwnerID,
		&task.CreatedByID,
		&task.AssignedToID,
		&completedBy,
		&category,
		&completedAt,
		&estimated,
		&actual,
		&tags,
		&threadTS,
		&channelID,
		&messageTS,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.CompletedByID = nullUUIDPtr(completedBy)
	task.CategoryID = nullUUIDPtr(category)
	task.CompletedAt = nullTimePtr(completedAt)
	task.EstimatedHours = nullFloatPtr(estimated)
	task.ActualHours = nullFloatPtr(actual)
	task.Tags = splitTags(tags)
	task.ChatThreadTS = nullStringPtr(threadTS)
	task.ChatChannelID = nullStringPtr(channelID)
	task.ChatMessageTS = nullStringPtr(messageTS)
	return &task, nil
}

// Tags are stored comma-joined; domain.NormalizeTags keeps them free of blanks.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return domain.NormalizeTags(strings.Split(s, ","))
}

func nullUUIDPtr(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := v.UUID
	return &id
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
