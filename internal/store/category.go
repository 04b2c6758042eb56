package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// CategoryStore defines the interface for category persistence.
type CategoryStore interface {
	// Create saves a new category. Returns ErrCategoryExists if the owner
	// already has a category with that name.
	Create(ctx context.Context, category *domain.Category) error

	// GetByID retrieves a category. Returns ErrCategoryNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)

	// GetByName retrieves the owner's category with the given name.
	GetByName(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Category, error)

	// ListByOwner returns the owner's categories ordered by name.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error)

	// Update saves changes to an existing category.
	Update(ctx context.Context, category *domain.Category) error

	// Delete removes a category.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a CategoryStore bound to the provided transaction.
	WithTx(tx *sql.Tx) CategoryStore
}
