package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const commentColumns = `id, task_id, author_id, content, chat_thread_ts, chat_message_ts, created_at, updated_at`

// PostgresCommentStore implements store.CommentStore.
type PostgresCommentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCommentStore creates a new PostgreSQL CommentStore.
func NewPostgresCommentStore(db store.DBTX, logger *slog.Logger) *PostgresCommentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCommentStore{
		db:     db,
		logger: logger.With(slog.String("component", "comment_store")),
	}
}

var _ store.CommentStore = (*PostgresCommentStore)(nil)

// WithTx implements store.CommentStore.WithTx.
func (s *PostgresCommentStore) WithTx(tx *sql.Tx) store.CommentStore {
	return &PostgresCommentStore{db: tx, logger: s.logger}
}

// Create implements store.CommentStore.Create.
func (s *PostgresCommentStore) Create(ctx context.Context, c *domain.TaskComment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.TaskID, c.AuthorID, c.Content, c.ChatThreadTS, c.ChatMessageTS, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrTaskNotFound
		}
		return mapStoreError("create comment", err)
	}
	return nil
}

// GetByID implements store.CommentStore.GetByID.
func (s *PostgresCommentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskComment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM task_comments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCommentNotFound
		}
		return nil, mapStoreError("get comment", err)
	}
	return c, nil
}

// Update implements store.CommentStore.Update.
func (s *PostgresCommentStore) Update(ctx context.Context, c *domain.TaskComment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_comments
		SET content = $2, chat_thread_ts = $3, chat_message_ts = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Content, c.ChatThreadTS, c.ChatMessageTS, c.UpdatedAt)
	if err != nil {
		return mapStoreError("update comment", err)
	}
	return CheckRowsAffected(result, store.ErrCommentNotFound)
}

// ListByTask implements store.CommentStore.ListByTask.
func (s *PostgresCommentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.TaskComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM task_comments
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, mapStoreError("list comments", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*domain.TaskComment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, mapStoreError("list comments", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list comments", err)
	}
	return comments, nil
}

func scanComment(row rowScanner) (*domain.TaskComment, error) {
	var (
		c         domain.TaskComment
		threadTS  sql.NullString
		messageTS sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.TaskID, &c.AuthorID, &c.Content,
		&threadTS, &messageTS, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ChatThreadTS = nullStringPtr(threadTS)
	c.ChatMessageTS = nullStringPtr(messageTS)
	return &c, nil
}
