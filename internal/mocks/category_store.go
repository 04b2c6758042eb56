package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockCategoryStore is an in-memory store.CategoryStore enforcing unique
// names per owner.
type MockCategoryStore struct {
	mu         sync.Mutex
	Categories map[uuid.UUID]*domain.Category

	CreateFn func(ctx context.Context, c *domain.Category) error
}

var _ store.CategoryStore = (*MockCategoryStore)(nil)

// NewMockCategoryStore creates an empty store.
func NewMockCategoryStore() *MockCategoryStore {
	return &MockCategoryStore{Categories: make(map[uuid.UUID]*domain.Category)}
}

// Create implements store.CategoryStore.
func (m *MockCategoryStore) Create(ctx context.Context, c *domain.Category) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Categories {
		if existing.OwnerID == c.OwnerID && existing.Name == c.Name {
			return store.ErrCategoryExists
		}
	}
	cp := *c
	m.Categories[c.ID] = &cp
	return nil
}

// GetByID implements store.CategoryStore.
func (m *MockCategoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Categories[id]
	if !ok {
		return nil, store.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByName implements store.CategoryStore.
func (m *MockCategoryStore) GetByName(_ context.Context, ownerID uuid.UUID, name string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Categories {
		if c.OwnerID == ownerID && c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrCategoryNotFound
}

// ListByOwner implements store.CategoryStore.
func (m *MockCategoryStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Category
	for _, c := range m.Categories {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update implements store.CategoryStore.
func (m *MockCategoryStore) Update(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Categories[c.ID]; !ok {
		return store.ErrCategoryNotFound
	}
	for id, existing := range m.Categories {
		if id != c.ID && existing.OwnerID == c.OwnerID && existing.Name == c.Name {
			return store.ErrCategoryExists
		}
	}
	cp := *c
	m.Categories[c.ID] = &cp
	return nil
}

// Delete implements store.CategoryStore.
func (m *MockCategoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Categories[id]; !ok {
		return store.ErrCategoryNotFound
	}
	delete(m.Categories, id)
	return nil
}

// WithTx returns the same store.
func (m *MockCategoryStore) WithTx(_ *sql.Tx) store.CategoryStore {
	return m
}
