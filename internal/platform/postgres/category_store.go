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

const categoryColumns = `id, owner_id, name, description, color, icon, created_at, updated_at`

// PostgresCategoryStore implements store.CategoryStore.
type PostgresCategoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCategoryStore creates a new PostgreSQL CategoryStore.
func NewPostgresCategoryStore(db store.DBTX, logger *slog.Logger) *PostgresCategoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCategoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "category_store")),
	}
}

var _ store.CategoryStore = (*PostgresCategoryStore)(nil)

// WithTx implements store.CategoryStore.WithTx.
func (s *PostgresCategoryStore) WithTx(tx *sql.Tx) store.CategoryStore {
	return &PostgresCategoryStore{db: tx, logger: s.logger}
}

// Create implements store.CategoryStore.Create.
func (s *PostgresCategoryStore) Create(ctx context.Context, c *domain.Category) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.OwnerID, c.Name, c.Description, c.Color, c.Icon, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		log.Warn("failed to create category",
			slog.String("error", err.Error()),
			slog.String("name", c.Name))
		return mapStoreError("create category", err)
	}
	return nil
}

// GetByID implements store.CategoryStore.GetByID.
func (s *PostgresCategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.getOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
}

// GetByName implements store.CategoryStore.GetByName.
func (s *PostgresCategoryStore) GetByName(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Category, error) {
	return s.getOne(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = $1 AND name = $2`,
		ownerID, name)
}

func (s *PostgresCategoryStore) getOne(ctx context.Context, query string, args ...any) (*domain.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCategoryNotFound
		}
		return nil, mapStoreError("get category", err)
	}
	return c, nil
}

// ListByOwner implements store.CategoryStore.ListByOwner.
func (s *PostgresCategoryStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE owner_id = $1
		ORDER BY name ASC
	`, ownerID)
	if err != nil {
		return nil, mapStoreError("list categories", err)
	}
	defer func() { _ = rows.Close() }()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapStoreError("list categories", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("list categories", err)
	}
	return categories, nil
}

// Update implements store.CategoryStore.Update.
func (s *PostgresCategoryStore) Update(ctx context.Context, c *domain.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, description = $3, color = $4, icon = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.Name, c.Description, c.Color, c.Icon, c.UpdatedAt)
	if err != nil {
		return mapStoreError("update category", err)
	}
	return CheckRowsAffected(result, store.ErrCategoryNotFound)
}

// Delete implements store.CategoryStore.Delete.
func (s *PostgresCategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapStoreError("delete category", err)
	}
	return CheckRowsAffected(result, store.ErrCategoryNotFound)
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Description,
		&c.Color, &c.Icon, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
