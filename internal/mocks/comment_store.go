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

// MockCommentStore is an in-memory store.CommentStore.
type MockCommentStore struct {
	mu       sync.Mutex
	Comments map[uuid.UUID]*domain.TaskComment

	CreateFn func(ctx context.Context, comment *domain.TaskComment) error
}

var _ store.CommentStore = (*MockCommentStore)(nil)

// NewMockCommentStore creates an empty store.
func NewMockCommentStore() *MockCommentStore {
	return &MockCommentStore{Comments: make(map[uuid.UUID]*domain.TaskComment)}
}

// Create implements store.CommentStore.
func (m *MockCommentStore) Create(ctx context.Context, c *domain.TaskComment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.Comments[c.ID] = &cp
	return nil
}

// GetByID implements store.CommentStore.
func (m *MockCommentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TaskComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Comments[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

// Update implements store.CommentStore.
func (m *MockCommentStore) Update(_ context.Context, c *domain.TaskComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Comments[c.ID]; !ok {
		return store.ErrCommentNotFound
	}
	cp := *c
	m.Comments[c.ID] = &cp
	return nil
}

// ListByTask implements store.CommentStore, oldest first.
func (m *MockCommentStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.TaskComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TaskComment
	for _, c := range m.Comments {
		if c.TaskID == taskID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// WithTx returns the same store.
func (m *MockCommentStore) WithTx(_ *sql.Tx) store.CommentStore {
	return m
}
