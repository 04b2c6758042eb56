package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockHistoryStore is an in-memory store.HistoryStore that keeps rows in
// append order.
type MockHistoryStore struct {
	mu      sync.Mutex
	Entries []*domain.TaskHistory

	// AppendErr, when set, fails every Append.
	AppendErr error
	PurgeFn   func(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ store.HistoryStore = (*MockHistoryStore)(nil)

// NewMockHistoryStore creates an empty store.
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

// Append implements store.HistoryStore.
func (m *MockHistoryStore) Append(_ context.Context, entries ...*domain.TaskHistory) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entries...)
	return nil
}

// ListByTask implements store.HistoryStore.
func (m *MockHistoryStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.TaskHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TaskHistory
	for _, h := range m.Entries {
		if h.TaskID == taskID {
			out = append(out, h)
		}
	}
	return out, nil
}

// MarkNotified implements store.HistoryStore.
func (m *MockHistoryStore) MarkNotified(_ context.Context, taskID uuid.UUID, action domain.HistoryAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.Entries {
		if h.TaskID == taskID && h.Action == action {
			h.ChatNotified = true
		}
	}
	return nil
}

// PurgeBefore implements store.HistoryStore.
func (m *MockHistoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeFn != nil {
		return m.PurgeFn(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Entries[:0]
	var n int64
	for _, h := range m.Entries {
		if h.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	m.Entries = kept
	return n, nil
}

// Count returns how many rows have been appended.
func (m *MockHistoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries)
}

// WithTx returns the same store.
func (m *MockHistoryStore) WithTx(_ *sql.Tx) store.HistoryStore {
	return m
}
