package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("lookup: %w", ErrNotFound), true},
		{"task not found", ErrTaskNotFound, true},
		{"wrapped category not found", fmt.Errorf("delete: %w", ErrCategoryNotFound), true},
		{"duplicate", ErrEmailExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrEmailExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrCategoryExists)))
	assert.False(t, IsDuplicateError(ErrTaskNotFound))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("boom")
	err := NewStoreError("task", "update", "failed to update task", cause)

	assert.Equal(t, "update operation on task failed: failed to update task: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("task", "list", "invalid sort", nil)
	assert.Equal(t, "list operation on task failed: invalid sort", bare.Error())
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("commit transaction", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "commit transaction")
}

func TestTaskFilterNormalize(t *testing.T) {
	f := TaskFilter{Page: 0, PerPage: 500, Sort: "bogus"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPerPage, f.PerPage)
	assert.Equal(t, SortByDueDate, f.Sort)

	f = TaskFilter{Page: 3, PerPage: 10}.Normalize()
	assert.Equal(t, 20, f.Offset())

	page := NewPage([]int{1, 2}, 25, f)
	assert.True(t, page.HasMore, "rows 21-22 of 25 leave more")

	last := NewPage([]int{1, 2, 3, 4, 5}, 25, TaskFilter{Page: 3, PerPage: 10}.Normalize())
	assert.False(t, last.HasMore)

	empty := NewPage[int](nil, 0, TaskFilter{}.Normalize())
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasMore)
}
