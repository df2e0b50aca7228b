package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dhartley/toolshed/internal/models"
	pkghttp "github.com/dhartley/toolshed/pkg/http"
)

// UserServiceInterface defines the interface for account management logic
type UserServiceInterface interface {
	Register(ctx context.Context, username, password, name, role string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Delete(ctx context.Context, id string) error
	Unlock(ctx context.Context, username string) error
}

// UserHandler handles account management HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff supplier user"`
}

// UserResponse represents account data returned to clients. The password
// hash and throttle counters never leave the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userToResponse(user *models.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// Register handles POST /auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password, req.Name, req.Role)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userToResponse(user))
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, userToResponse(user))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"users": responses,
		"count": len(responses),
	})
}

// Get handles GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// Delete handles DELETE /users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		mapAccountError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /admin/users/{username}/unlock. Clearing the
// throttle state on an account with no active lock is a no-op.
func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		pkghttp.WriteBadRequest(w, "Username is required")
		return
	}

	if err := h.service.Unlock(r.Context(), username); err != nil {
		mapAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Account unlocked",
	})
}
