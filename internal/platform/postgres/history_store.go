package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresHistoryStore implements store.HistoryStore. Rows are append-only:
// the only mutation after insert is the chat_notified flag.
type PostgresHistoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresHistoryStore creates a new PostgreSQL HistoryStore.
func NewPostgresHistoryStore(db store.DBTX, logger *slog.Logger) *PostgresHistoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresHistoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "history_store")),
	}
}

var _ store.HistoryStore = (*PostgresHistoryStore)(nil)

// WithTx implements store.HistoryStore.WithTx.
func (s *PostgresHistoryStore) WithTx(tx *sql.Tx) store.HistoryStore {
	return &PostgresHistoryStore{db: tx, logger: s.logger}
}

// Append implements store.HistoryStore.Append.
func (s *PostgresHistoryStore) Append(ctx context.Context, entries ...*domain.TaskHistory) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO task_history (
			id, task_id, actor_id, action, field_name, old_value, new_value,
			ip_address, user_agent, chat_notified, chat_thread_ts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, h := range entries {
		_, err := s.db.ExecContext(ctx, query,
			h.ID,
			h.TaskID,
			h.ActorID,
			h.Action,
			h.FieldName,
			h.OldValue,
			h.NewValue,
			h.IPAddress,
			h.UserAgent,
			h.ChatNotified,
			h.ChatThreadTS,
			h.CreatedAt,
		)
		if err != nil {
			log.Error("failed to append task history",
				slog.String("error", err.Error()),
				slog.String("task_id", h.TaskID.String()),
				slog.String("action", string(h.Action)))
			return store.NewPersistenceError("append history", MapError(err))
		}
	}
	return nil
}

// ListByTask implements store.HistoryStore.ListByTask.
func (s *PostgresHistoryStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, actor_id, action, field_name, old_value, new_value,
		       ip_address, user_agent, chat_notified, chat_thread_ts, created_at
		FROM task_history
		WHERE task_id = $1
		ORDER BY seq ASC
	`, taskID)
	if err != nil {
		return nil, mapStoreError("list history", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.TaskHistory
	for rows.Next() {
		var (
			h        domain.TaskHistory
			field    sql.NullString
			oldValue sql.NullString
			newValue sql.NullString
			threadTS sql.NullString
		)
		if err := rows.Scan(
			&h.ID,
			&h.TaskID,
			&h.ActorID,
			&h.Action,
			&field,
			&oldValue,
			&newValue,
			&h.IPAddress,
			&h.UserAgent,
			&h.ChatNotified,
			&threadTS,
			&h.CreatedAt,
		); err != nil {
			return nil, mapStoreError("list history", err)
		}
		h.FieldName = nullStringPtr(field)
		h.OldValue = nullStringPtr(oldValue)
		h.NewValue = nullStringPtr(newValue)
		h.ChatThreadTS = nullStringPtr(threadTS)
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list history", err)
	}
	return entries, nil
}

// MarkNotified implements store.HistoryStore.MarkNotified.
func (s *PostgresHistoryStore) MarkNotified(ctx context.Context, taskID uuid.UUID, action domain.HistoryAction) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_history SET chat_notified = TRUE
		WHERE task_id = $1 AND action = $2 AND chat_notified = FALSE
	`, taskID, action)
	if err != nil {
		return mapStoreError("mark history notified", err)
	}
	return nil
}

// PurgeBefore implements store.HistoryStore.PurgeBefore.
func (s *PostgresHistoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_history WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, mapStoreError("purge history", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewPersistenceError("purge history", err)
	}
	return n, nil
}
