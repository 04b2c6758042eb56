package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category defaults
const (
	DefaultCategoryName        = "Uncategorized"
	DefaultCategoryDescription = "Default category for uncategorized tasks"
	DefaultCategoryColor       = "#95a5a6"
	DefaultColor               = "#3498db"
	DefaultIcon                = "folder"
	MaxCategoryNameLength      = 100
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Category groups a user's tasks.
type Category struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCategory creates a category owned by ownerID, filling in the default
// color and icon when empty.
func NewCategory(ownerID uuid.UUID, name, description, color, icon string) (*Category, error) {
	now := time.Now().UTC()
	c := &Category{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: description,
		Color:       color,
		Icon:        icon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Color == "" {
		c.Color = DefaultColor
	}
	if c.Icon == "" {
		c.Icon = DefaultIcon
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewDefaultCategory creates the user's Uncategorized category.
func NewDefaultCategory(ownerID uuid.UUID) *Category {
	now := time.Now().UTC()
	return &Category{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        DefaultCategoryName,
		Description: DefaultCategoryDescription,
		Color:       DefaultCategoryColor,
		Icon:        DefaultIcon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the category fields.
func (c *Category) Validate() error {
	if c.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "cannot be empty")
	}
	if c.Name == "" {
		return NewValidationError("name", "is required")
	}
	if len([]rune(c.Name)) > MaxCategoryNameLength {
		return NewValidationError("name", "must be at most 100 characters")
	}
	if !colorPattern.MatchString(c.Color) {
		return NewValidationError("color", "must be a hex color like #3498db")
	}
	return nil
}

// IsDefault reports whether this is the undeletable Uncategorized category.
func (c *Category) IsDefault() bool {
	return c.Name == DefaultCategoryName
}
