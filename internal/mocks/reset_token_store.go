package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockResetTokenStore is an in-memory store.ResetTokenStore.
type MockResetTokenStore struct {
	mu     sync.Mutex
	Tokens map[string]*store.ResetToken
}

var _ store.ResetTokenStore = (*MockResetTokenStore)(nil)

// NewMockResetTokenStore creates an empty store.
func NewMockResetTokenStore() *MockResetTokenStore {
	return &MockResetTokenStore{Tokens: make(map[string]*store.ResetToken)}
}

// Save implements store.ResetTokenStore.
func (m *MockResetTokenStore) Save(_ context.Context, t *store.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Tokens[t.TokenHash]; ok {
		return store.ErrDuplicate
	}
	cp := *t
	m.Tokens[t.TokenHash] = &cp
	return nil
}

// Consume implements store.ResetTokenStore.
func (m *MockResetTokenStore) Consume(_ context.Context, hash string, now time.Time) (*store.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tokens[hash]
	if !ok || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return nil, store.ErrTokenNotFound
	}
	used := now
	t.UsedAt = &used
	cp := *t
	return &cp, nil
}

// DeleteExpired implements store.ResetTokenStore.
func (m *MockResetTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, t := range m.Tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.Tokens, hash)
			n++
		}
	}
	return n, nil
}

// WithTx returns the same store.
func (m *MockResetTokenStore) WithTx(_ *sql.Tx) store.ResetTokenStore {
	return m
}
