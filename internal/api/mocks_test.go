package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/sweep"
	"github.com/phrazzld/taskflow-api/internal/tracker"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser places an authenticated user ID in the request context.
func withUser(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(shared.WithPrincipal(r.Context(), id, domain.RoleUser))
}

// withURLParam attaches a chi route parameter to the request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// MockTaskService is a testify mock of service.TaskService.
type MockTaskService struct {
	mock.Mock
}

var _ service.TaskService = (*MockTaskService)(nil)

func (m *MockTaskService) Create(ctx context.Context, ownerID uuid.UUID, params service.CreateTaskParams) (*domain.Task, error) {
	args := m.Called(ctx, ownerID, params)
	t, _ := args.Get(0).(*domain.Task)
	return t, args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, taskID, actorID uuid.UUID, params service.UpdateTaskParams) (*domain.Task, []tracker.Change, error) {
	args := m.Called(ctx, taskID, actorID, params)
	t, _ := args.Get(0).(*domain.Task)
	changes, _ := args.Get(1).([]tracker.Change)
	return t, changes, args.Error(2)
}

func (m *MockTaskService) Complete(ctx context.Context, taskID, actorID uuid.UUID, p domain.Provenance) (*domain.Task, error) {
	args := m.Called(ctx, taskID, actorID, p)
	t, _ := args.Get(0).(*domain.Task)
	return t, args.Error(1)
}

func (m *MockTaskService) Delete(ctx context.Context, taskID, actorID uuid.UUID) error {
	return m.Called(ctx, taskID, actorID).Error(0)
}

func (m *MockTaskService) Get(ctx context.Context, taskID, actorID uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, taskID, actorID)
	t, _ := args.Get(0).(*domain.Task)
	return t, args.Error(1)
}

func (m *MockTaskService) List(ctx context.Context, ownerID uuid.UUID, filter store.TaskFilter) (store.Page[*domain.Task], error) {
	args := m.Called(ctx, ownerID, filter)
	p, _ := args.Get(0).(store.Page[*domain.Task])
	return p, args.Error(1)
}

func (m *MockTaskService) History(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskHistory, error) {
	args := m.Called(ctx, taskID, actorID)
	h, _ := args.Get(0).([]*domain.TaskHistory)
	return h, args.Error(1)
}

func (m *MockTaskService) Stats(ctx context.Context, userID uuid.UUID) (domain.TaskStats, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(domain.TaskStats)
	return s, args.Error(1)
}

func (m *MockTaskService) AddComment(ctx context.Context, taskID, actorID uuid.UUID, content string) (*domain.TaskComment, error) {
	args := m.Called(ctx, taskID, actorID, content)
	c, _ := args.Get(0).(*domain.TaskComment)
	return c, args.Error(1)
}

func (m *MockTaskService) EditComment(ctx context.Context, commentID, actorID uuid.UUID, content string) (*domain.TaskComment, error) {
	args := m.Called(ctx, commentID, actorID, content)
	c, _ := args.Get(0).(*domain.TaskComment)
	return c, args.Error(1)
}

func (m *MockTaskService) ListComments(ctx context.Context, taskID, actorID uuid.UUID) ([]*domain.TaskComment, error) {
	args := m.Called(ctx, taskID, actorID)
	c, _ := args.Get(0).([]*domain.TaskComment)
	return c, args.Error(1)
}

// MockUserService is a testify mock of service.UserService.
type MockUserService struct {
	mock.Mock
}

var _ service.UserService = (*MockUserService)(nil)

func (m *MockUserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	args := m.Called(ctx, username, email, password)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserService) GetByChatUserID(ctx context.Context, chatUserID string) (*domain.User, error) {
	args := m.Called(ctx, chatUserID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserService) UpdateChatSettings(ctx context.Context, userID uuid.UUID, settings service.ChatSettings) (*domain.User, error) {
	args := m.Called(ctx, userID, settings)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *MockUserService) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, token, password string) error {
	return m.Called(ctx, token, password).Error(0)
}

// MockCategoryService is a testify mock of service.CategoryService.
type MockCategoryService struct {
	mock.Mock
}

var _ service.CategoryService = (*MockCategoryService)(nil)

func (m *MockCategoryService) Create(ctx context.Context, ownerID uuid.UUID, name, description, color, icon string) (*domain.Category, error) {
	args := m.Called(ctx, ownerID, name, description, color, icon)
	c, _ := args.Get(0).(*domain.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	args := m.Called(ctx, ownerID)
	c, _ := args.Get(0).([]*domain.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) Update(ctx context.Context, ownerID, categoryID uuid.UUID, name, description, color, icon string) (*domain.Category, error) {
	args := m.Called(ctx, ownerID, categoryID, name, description, color, icon)
	c, _ := args.Get(0).(*domain.Category)
	return c, args.Error(1)
}

func (m *MockCategoryService) Delete(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	return m.Called(ctx, ownerID, categoryID).Error(0)
}

func (m *MockCategoryService) Default(ctx context.Context, ownerID uuid.UUID) (*domain.Category, error) {
	args := m.Called(ctx, ownerID)
	c, _ := args.Get(0).(*domain.Category)
	return c, args.Error(1)
}

// MockSweepTrigger is a testify mock of SweepTrigger.
type MockSweepTrigger struct {
	mock.Mock
}

func (m *MockSweepTrigger) Trigger(ctx context.Context, kind sweep.Kind) error {
	return m.Called(ctx, kind).Error(0)
}

func (m *MockSweepTrigger) Kinds() []sweep.Kind {
	k, _ := m.Called().Get(0).([]sweep.Kind)
	return k
}

func (m *MockSweepTrigger) Running(kind sweep.Kind) bool {
	return m.Called(kind).Bool(0)
}
