package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(jwt *mocks.MockJWTService) (*AuthHandler, *MockUserService) {
	users := &MockUserService{}
	h := NewAuthHandler(users, jwt, &config.AuthConfig{
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
	}, discardLogger())
	h.timeFunc = func() time.Time { return handlerNow }
	return h, users
}

func TestRegister(t *testing.T) {
	t.Run("issues tokens", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{Token: "access", RefreshToken: "refresh"})
		user := &domain.User{ID: uuid.New(), Username: "ada", Email: "ada@example.com", Role: domain.RoleUser}
		users.On("Register", mock.Anything, "ada", "ada@example.com", "correct-horse-battery").Return(user, nil)

		body := `{"username":"ada","email":"ada@example.com","password":"correct-horse-battery"}`
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, user.ID, resp.UserID)
		assert.Equal(t, "access", resp.AccessToken)
		assert.Equal(t, "refresh", resp.RefreshToken)
		assert.Equal(t, handlerNow.Add(time.Hour).Format(time.RFC3339), resp.ExpiresAt)
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{})
		users.On("Register", mock.Anything, "ada", "ada@example.com", "correct-horse-battery").
			Return(nil, store.ErrEmailExists)

		body := `{"username":"ada","email":"ada@example.com","password":"correct-horse-battery"}`
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already exists", errorBody(t, rec))
	})

	t.Run("short password", func(t *testing.T) {
		h, _ := newTestAuthHandler(&mocks.MockJWTService{})
		body := `{"username":"ada","email":"ada@example.com","password":"short"}`
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid Password: too short", errorBody(t, rec))
	})

	t.Run("malformed json", func(t *testing.T) {
		h, _ := newTestAuthHandler(&mocks.MockJWTService{})
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request format", errorBody(t, rec))
	})

	t.Run("empty body", func(t *testing.T) {
		h, _ := newTestAuthHandler(&mocks.MockJWTService{})
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Request body is required", errorBody(t, rec))
	})
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, users := newTestAuthHandler(&mocks.MockJWTService{})
	users.On("Authenticate", mock.Anything, "ada@example.com", "wrong").Return(nil, auth.ErrInvalidCredentials)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorBody(t, rec))
}

func TestRefreshToken(t *testing.T) {
	userID := uuid.New()

	t.Run("uses current role", func(t *testing.T) {
		var issuedRole domain.Role
		jwt := &mocks.MockJWTService{
			ValidateRefreshTokenFn: func(context.Context, string) (*auth.Claims, error) {
				return &auth.Claims{UserID: userID, Role: domain.RoleUser, TokenType: "refresh"}, nil
			},
			GenerateTokenFn: func(_ context.Context, _ uuid.UUID, role domain.Role) (string, error) {
				issuedRole = role
				return "new-access", nil
			},
			RefreshToken: "new-refresh",
		}
		h, users := newTestAuthHandler(jwt)
		users.On("Get", mock.Anything, userID).Return(&domain.User{ID: userID, Role: domain.RoleAdmin}, nil)

		rec := httptest.NewRecorder()
		h.RefreshToken(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh",
			strings.NewReader(`{"refresh_token":"old"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp RefreshTokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "new-access", resp.AccessToken)
		assert.Equal(t, "new-refresh", resp.RefreshToken)
		assert.Equal(t, domain.RoleAdmin, issuedRole)
	})

	t.Run("expired", func(t *testing.T) {
		h, _ := newTestAuthHandler(&mocks.MockJWTService{
			ValidateRefreshTokenFn: func(context.Context, string) (*auth.Claims, error) {
				return nil, auth.ErrExpiredRefreshToken
			},
		})
		rec := httptest.NewRecorder()
		h.RefreshToken(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh",
			strings.NewReader(`{"refresh_token":"old"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid refresh token", errorBody(t, rec))
	})

	t.Run("deleted user", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{
			ValidateRefreshTokenFn: func(context.Context, string) (*auth.Claims, error) {
				return &auth.Claims{UserID: userID}, nil
			},
		})
		users.On("Get", mock.Anything, userID).Return(nil, store.ErrUserNotFound)

		rec := httptest.NewRecorder()
		h.RefreshToken(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh",
			strings.NewReader(`{"refresh_token":"old"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPasswordReset(t *testing.T) {
	t.Run("forgot answers the same for unknown emails", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{})
		users.On("RequestPasswordReset", mock.Anything, "nobody@example.com").Return(nil)

		rec := httptest.NewRecorder()
		h.ForgotPassword(rec, httptest.NewRequest(http.MethodPost, "/auth/password/forgot",
			strings.NewReader(`{"email":"nobody@example.com"}`)))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		users.AssertExpectations(t)
	})

	t.Run("reset with a bad token", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{})
		users.On("ResetPassword", mock.Anything, "bogus", "a-brand-new-password").Return(domain.NewValidationError("token", "is invalid or expired"))

		rec := httptest.NewRecorder()
		h.ResetPassword(rec, httptest.NewRequest(http.MethodPost, "/auth/password/reset",
			strings.NewReader(`{"token":"bogus","password":"a-brand-new-password"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid token: is invalid or expired", errorBody(t, rec))
	})

	t.Run("change requires auth", func(t *testing.T) {
		h, _ := newTestAuthHandler(&mocks.MockJWTService{})
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, httptest.NewRequest(http.MethodPost, "/auth/password/change",
			strings.NewReader(`{"current_password":"x","new_password":"a-brand-new-password"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("change", func(t *testing.T) {
		h, users := newTestAuthHandler(&mocks.MockJWTService{})
		userID := uuid.New()
		users.On("ChangePassword", mock.Anything, userID, "old-password", "a-brand-new-password").Return(nil)

		rec := httptest.NewRecorder()
		h.ChangePassword(rec, withUser(httptest.NewRequest(http.MethodPost, "/auth/password/change",
			strings.NewReader(`{"current_password":"old-password","new_password":"a-brand-new-password"}`)), userID))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
