package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// CategoryService manages a user's task categories.
type CategoryService interface {
	// Create adds a category for ownerID.
	Create(ctx context.Context, ownerID uuid.UUID, name, description, color, icon string) (*domain.Category, error)

	// List returns the owner's categories, creating the default one on first use.
	List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error)

	// Update renames or restyles a category. Empty values keep the current ones.
	Update(ctx context.Context, ownerID, categoryID uuid.UUID, name, description, color, icon string) (*domain.Category, error)

	// Delete removes a category, moving its tasks to the default category in
	// the same transaction. The default category itself cannot be deleted.
	Delete(ctx context.Context, ownerID, categoryID uuid.UUID) error

	// Default returns the owner's Uncategorized category, creating it if needed.
	Default(ctx context.Context, ownerID uuid.UUID) (*domain.Category, error)
}

type categoryServiceImpl struct {
	db         store.Beginner
	categories store.CategoryStore
	tasks      store.TaskStore
	logger     *slog.Logger
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(
	db store.Beginner,
	categories store.CategoryStore,
	tasks store.TaskStore,
	logger *slog.Logger,
) (CategoryService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil")
	}
	if categories == nil {
		return nil, domain.NewValidationError("categories", "cannot be nil")
	}
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &categoryServiceImpl{
		db:         db,
		categories: categories,
		tasks:      tasks,
		logger:     logger.With(slog.String("component", "category_service")),
	}, nil
}

// ensureDefaultCategory finds or creates the owner's Uncategorized category.
// A concurrent creator winning the unique constraint is resolved by re-reading.
func ensureDefaultCategory(ctx context.Context, categories store.CategoryStore, ownerID uuid.UUID) (*domain.Category, error) {
	c, err := categories.GetByName(ctx, ownerID, domain.DefaultCategoryName)
	if err == nil {
		return c, nil
	}
	if !store.IsNotFoundError(err) {
		return nil, err
	}

	c = domain.NewDefaultCategory(ownerID)
	if err := categories.Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrCategoryExists) {
			return categories.GetByName(ctx, ownerID, domain.DefaultCategoryName)
		}
		return nil, err
	}
	logger.FromContext(ctx).Debug("created default category",
		slog.String("owner_id", ownerID.String()),
		slog.String("category_id", c.ID.String()))
	return c, nil
}

// Default implements CategoryService.
func (s *categoryServiceImpl) Default(ctx context.Context, ownerID uuid.UUID) (*domain.Category, error) {
	c, err := ensureDefaultCategory(ctx, s.categories, ownerID)
	if err != nil {
		return nil, NewCategoryServiceError("default", "failed to resolve default category", err)
	}
	return c, nil
}

// Create implements CategoryService.
func (s *categoryServiceImpl) Create(
	ctx context.Context,
	ownerID uuid.UUID,
	name, description, color, icon string,
) (*domain.Category, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	c, err := domain.NewCategory(ownerID, name, description, color, icon)
	if err != nil {
		return nil, NewCategoryServiceError("create", "invalid category", err)
	}
	if err := s.categories.Create(ctx, c); err != nil {
		log.Debug("failed to create category",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", redact.Error(err)))
		return nil, NewCategoryServiceError("create", "failed to save category", err)
	}

	log.Info("category created",
		slog.String("category_id", c.ID.String()),
		slog.String("owner_id", ownerID.String()))
	return c, nil
}

// List implements CategoryService.
func (s *categoryServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	if _, err := ensureDefaultCategory(ctx, s.categories, ownerID); err != nil {
		return nil, NewCategoryServiceError("list", "failed to resolve default category", err)
	}
	cats, err := s.categories.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewCategoryServiceError("list", "failed to list categories", err)
	}
	return cats, nil
}

func (s *categoryServiceImpl) owned(ctx context.Context, categories store.CategoryStore, ownerID, id uuid.UUID) (*domain.Category, error) {
	c, err := categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, store.ErrCategoryNotFound
	}
	return c, nil
}

// Update implements CategoryService.
func (s *categoryServiceImpl) Update(
	ctx context.Context,
	ownerID, categoryID uuid.UUID,
	name, description, color, icon string,
) (*domain.Category, error) {
	c, err := s.owned(ctx, s.categories, ownerID, categoryID)
	if err != nil {
		return nil, NewCategoryServiceError("update", "category not found", err)
	}

	name = strings.TrimSpace(name)
	if c.IsDefault() && name != "" && name != c.Name {
		return nil, NewCategoryServiceError("update", "cannot rename default category", ErrDefaultCategory)
	}
	if name != "" {
		c.Name = name
	}
	if description != "" {
		c.Description = description
	}
	if color != "" {
		c.Color = color
	}
	if icon != "" {
		c.Icon = icon
	}
	if err := c.Validate(); err != nil {
		return nil, NewCategoryServiceError("update", "invalid category", err)
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.categories.Update(ctx, c); err != nil {
		return nil, NewCategoryServiceError("update", "failed to save category", err)
	}
	return c, nil
}

// Delete implements CategoryService.
func (s *categoryServiceImpl) Delete(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	target, err := s.owned(ctx, s.categories, ownerID, categoryID)
	if err != nil {
		return NewCategoryServiceError("delete", "category not found", err)
	}
	if target.IsDefault() {
		return NewCategoryServiceError("delete", "cannot delete default category", ErrDefaultCategory)
	}

	fallback, err := ensureDefaultCategory(ctx, s.categories, ownerID)
	if err != nil {
		return NewCategoryServiceError("delete", "failed to resolve default category", err)
	}

	var moved int64
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		n, err := s.tasks.WithTx(tx).ReassignCategory(ctx, categoryID, fallback.ID)
		if err != nil {
			return NewCategoryServiceError("delete", "failed to reassign tasks", err)
		}
		moved = n
		if err := s.categories.WithTx(tx).Delete(ctx, categoryID); err != nil {
			return NewCategoryServiceError("delete", "failed to delete category", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("category deleted",
		slog.String("category_id", categoryID.String()),
		slog.Int64("tasks_reassigned", moved))
	return nil
}
