package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListCategories(t *testing.T) {
	userID := uuid.New()

	t.Run("empty list is an array", func(t *testing.T) {
		svc := &MockCategoryService{}
		h := NewCategoryHandler(svc, discardLogger())
		svc.On("List", mock.Anything, userID).Return(nil, nil)

		rec := httptest.NewRecorder()
		h.ListCategories(rec, withUser(httptest.NewRequest(http.MethodGet, "/categories", nil), userID))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("missing user", func(t *testing.T) {
		h := NewCategoryHandler(&MockCategoryService{}, discardLogger())

		rec := httptest.NewRecorder()
		h.ListCategories(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCreateCategory(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &MockCategoryService{}
		h := NewCategoryHandler(svc, discardLogger())
		created := &domain.Category{ID: uuid.New(), OwnerID: userID, Name: "Work", Color: "#336699"}
		svc.On("Create", mock.Anything, userID, "Work", "", "#336699", "").Return(created, nil)

		body := `{"name":"Work","color":"#336699"}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(body)), userID)
		rec := httptest.NewRecorder()
		h.CreateCategory(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp domain.Category
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, created.ID, resp.ID)
		svc.AssertExpectations(t)
	})

	t.Run("invalid color", func(t *testing.T) {
		svc := &MockCategoryService{}
		h := NewCategoryHandler(svc, discardLogger())

		body := `{"name":"Work","color":"blue"}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(body)), userID)
		rec := httptest.NewRecorder()
		h.CreateCategory(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc := &MockCategoryService{}
		h := NewCategoryHandler(svc, discardLogger())
		svc.On("Create", mock.Anything, userID, "Work", "", "", "").
			Return(nil, fmt.Errorf("create: %w", store.ErrCategoryExists))

		req := withUser(httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":"Work"}`)), userID)
		rec := httptest.NewRecorder()
		h.CreateCategory(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Category name already exists", errorBody(t, rec))
	})
}

func TestUpdateCategory_DefaultIsForbidden(t *testing.T) {
	userID, categoryID := uuid.New(), uuid.New()
	svc := &MockCategoryService{}
	h := NewCategoryHandler(svc, discardLogger())
	svc.On("Update", mock.Anything, userID, categoryID, "Renamed", "", "", "").
		Return(nil, service.ErrDefaultCategory)

	req := httptest.NewRequest(http.MethodPut, "/categories/"+categoryID.String(), strings.NewReader(`{"name":"Renamed"}`))
	req = withURLParam(withUser(req, userID), "id", categoryID.String())
	rec := httptest.NewRecorder()
	h.UpdateCategory(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "The default category cannot be changed", errorBody(t, rec))
}

func TestDeleteCategory(t *testing.T) {
	userID, categoryID := uuid.New(), uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"not found", store.ErrCategoryNotFound, http.StatusNotFound},
		{"default category", service.ErrDefaultCategory, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockCategoryService{}
			h := NewCategoryHandler(svc, discardLogger())
			svc.On("Delete", mock.Anything, userID, categoryID).Return(tt.err)

			req := httptest.NewRequest(http.MethodDelete, "/categories/"+categoryID.String(), nil)
			req = withURLParam(withUser(req, userID), "id", categoryID.String())
			rec := httptest.NewRecorder()
			h.DeleteCategory(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}

	t.Run("invalid id", func(t *testing.T) {
		svc := &MockCategoryService{}
		h := NewCategoryHandler(svc, discardLogger())

		req := httptest.NewRequest(http.MethodDelete, "/categories/nope", nil)
		req = withURLParam(withUser(req, userID), "id", "nope")
		rec := httptest.NewRecorder()
		h.DeleteCategory(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Delete")
	})
}
