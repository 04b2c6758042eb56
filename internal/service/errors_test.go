package service

import (
	"errors"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	assert.ErrorIs(t, ErrDefaultCategory, domain.ErrForbidden)
	assert.False(t, errors.Is(ErrChatNotLinked, domain.ErrForbidden))
}

func TestServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServiceError
		expected string
	}{
		{
			name:     "with underlying error",
			err:      NewTaskServiceError("create", "failed to save task", errors.New("connection reset")),
			expected: "task service create failed: failed to save task: connection reset",
		},
		{
			name:     "without underlying error",
			err:      NewCategoryServiceError("delete", "nothing to do", nil),
			expected: "category service delete failed: nothing to do",
		},
		{
			name:     "with sentinel error",
			err:      NewUserServiceError("get", "user not found", store.ErrUserNotFound),
			expected: "user service get failed: user not found: entity not found: user",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	err := NewTaskServiceError("update", "task not found", store.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var se *ServiceError
	assert.True(t, errors.As(error(err), &se))
	assert.Equal(t, "update", se.Operation)
}
