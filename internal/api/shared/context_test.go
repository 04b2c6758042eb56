package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrincipal(t *testing.T) {
	id := uuid.New()
	ctx := WithPrincipal(context.Background(), id, domain.RoleAdmin)

	gotID, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, gotID)

	role, ok := Role(ctx)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, role)
}

func TestPrincipal_Missing(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)
	_, ok = Role(context.Background())
	assert.False(t, ok)

	_, ok = UserID(WithPrincipal(context.Background(), uuid.Nil, domain.RoleUser))
	assert.False(t, ok, "nil user ID is not authenticated")
}

func TestTraceID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		id := GetTraceID(SetTraceID(context.Background(), ""))
		assert.Len(t, id, 32)
		assert.True(t, validTraceID(id))
	})

	t.Run("inbound id kept", func(t *testing.T) {
		inbound := NewTraceID()
		assert.Equal(t, inbound, GetTraceID(SetTraceID(context.Background(), inbound)))
	})

	t.Run("malformed inbound id replaced", func(t *testing.T) {
		for _, bad := range []string{"short", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ", "0123456789ABCDEF0123456789ABCDEF"} {
			got := GetTraceID(SetTraceID(context.Background(), bad))
			assert.NotEqual(t, bad, got)
			assert.Len(t, got, 32)
		}
	})

	t.Run("unique", func(t *testing.T) {
		assert.NotEqual(t, NewTraceID(), NewTraceID())
	})

	t.Run("absent from bare context", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})
}
