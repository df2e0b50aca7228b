package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/models"
	"github.com/dhartley/toolshed/internal/services"
	pkghttp "github.com/dhartley/toolshed/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext injects an authenticated account into the request context
// for testing protected endpoints.
func WithAuthContext(req *http.Request, user *models.User) *http.Request {
	sess := &models.Session{
		ID:        "test-session",
		UserID:    user.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.ContextWithAuth(req.Context(), user, sess))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewAuthHandlerWithCSRFIssuer builds an AuthHandler with the CSRF cookie
// minting replaced, so tests can drive the login failure path.
func NewAuthHandlerWithCSRFIssuer(service AuthServiceInterface, cookies auth.CookieConfig, issue func(http.ResponseWriter, auth.CookieConfig) (string, error)) *AuthHandler {
	h := NewAuthHandler(service, cookies)
	h.issueCSRF = issue
	return h
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, username, password string) (*services.LoginResult, error)
	CheckSessionFunc func(ctx context.Context, token string) (*services.AuthenticatedContext, error)
	LogoutFunc       func(ctx context.Context, token string) error
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return &services.LoginResult{Outcome: services.LoginInvalidCredentials}, nil
	}
	return m.LoginFunc(ctx, username, password)
}

func (m *MockAuthService) CheckSession(ctx context.Context, token string) (*services.AuthenticatedContext, error) {
	if m.CheckSessionFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CheckSessionFunc(ctx, token)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	RegisterFunc func(ctx context.Context, username, password, name, role string) (*models.User, error)
	GetFunc      func(ctx context.Context, id string) (*models.User, error)
	ListFunc     func(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteFunc   func(ctx context.Context, id string) error
	UnlockFunc   func(ctx context.Context, username string) error
}

func (m *MockUserService) Register(ctx context.Context, username, password, name, role string) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, username, password, name, role)
}

func (m *MockUserService) Get(ctx context.Context, id string) (*models.User, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockUserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListFunc(ctx, limit, offset)
}

func (m *MockUserService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

func (m *MockUserService) Unlock(ctx context.Context, username string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, username)
}
