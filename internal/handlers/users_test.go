package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhartley/toolshed/internal/handlers"
	"github.com/dhartley/toolshed/internal/models"
)

func TestRegister_Success(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		RegisterFunc: func(ctx context.Context, username, password, name, role string) (*models.User, error) {
			return &models.User{
				ID:        "user-1",
				Username:  username,
				Name:      name,
				Role:      models.RoleStaff,
				CreatedAt: time.Now(),
			}, nil
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "bob",
		Password: "password123",
		Name:     "Bob the Builder",
		Role:     models.RoleStaff,
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "bob", resp.Username)
	assert.Equal(t, models.RoleStaff, resp.Role)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		RegisterFunc: func(ctx context.Context, username, password, name, role string) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "bob",
		Password: "password123",
		Name:     "Bob",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestRegister_ValidationErrors(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{})

	cases := []struct {
		name string
		req  handlers.RegisterRequest
	}{
		{"short password", handlers.RegisterRequest{Username: "bob", Password: "short", Name: "Bob"}},
		{"missing username", handlers.RegisterRequest{Password: "password123", Name: "Bob"}},
		{"bad role", handlers.RegisterRequest{Username: "bob", Password: "password123", Name: "Bob", Role: "superuser"}},
		{"non alphanumeric username", handlers.RegisterRequest{Username: "bob smith", Password: "password123", Name: "Bob"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := handlers.NewTestRequest(t, "POST", "/auth/register", tc.req)
			w := httptest.NewRecorder()
			handler.Register(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestListUsers(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			return []*models.User{
				{ID: "user-1", Username: "alice", Role: models.RoleAdmin},
				{ID: "user-2", Username: "bob", Role: models.RoleStaff},
			}, nil
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "GET", "/users?limit=10", nil)

	w := httptest.NewRecorder()
	handler.List(w, req)

	var resp struct {
		Users []*handlers.UserResponse `json:"users"`
		Count int                      `json:"count"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, "alice", resp.Users[0].Username)
}

func TestGetUser_NotFound(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		GetFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "GET", "/users/nope", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "nope"})

	w := httptest.NewRecorder()
	handler.Get(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestDeleteUser(t *testing.T) {
	var deleted string
	mockUsers := &handlers.MockUserService{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "DELETE", "/users/user-2", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "user-2"})

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "user-2", deleted)
}

func TestUnlock(t *testing.T) {
	var unlocked string
	mockUsers := &handlers.MockUserService{
		UnlockFunc: func(ctx context.Context, username string) error {
			unlocked = username
			return nil
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "POST", "/admin/users/alice/unlock", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"username": "alice"})

	w := httptest.NewRecorder()
	handler.Unlock(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "alice", unlocked)
}

func TestUnlock_UnknownAccount(t *testing.T) {
	mockUsers := &handlers.MockUserService{
		UnlockFunc: func(ctx context.Context, username string) error {
			return models.ErrNotFound
		},
	}

	handler := handlers.NewUserHandler(mockUsers)
	req := handlers.NewTestRequest(t, "POST", "/admin/users/ghost/unlock", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"username": "ghost"})

	w := httptest.NewRecorder()
	handler.Unlock(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}
