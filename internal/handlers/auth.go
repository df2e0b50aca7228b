package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/models"
	"github.com/dhartley/toolshed/internal/services"
	pkghttp "github.com/dhartley/toolshed/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	CheckSession(ctx context.Context, token string) (*services.AuthenticatedContext, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	cookies   auth.CookieConfig
	issueCSRF func(http.ResponseWriter, auth.CookieConfig) (string, error)
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookies auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		cookies:   cookies,
		issueCSRF: auth.IssueCSRFCookie,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login. The session token also
// travels in the httpOnly cookie; it is echoed here for non-browser clients.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// DenyResponse is the 401 body for a failed attempt against an existing,
// unlocked account. The message matches the unknown-username case exactly.
type DenyResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

const invalidCredentialsMessage = "Invalid username or password"

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	switch result.Outcome {
	case services.LoginAllow:
		// Mint the CSRF token before writing any credential to the response.
		// If it fails, revoke the fresh session so the 500 leaves nothing
		// live behind.
		if _, err := h.issueCSRF(w, h.cookies); err != nil {
			_ = h.service.Logout(r.Context(), result.Session.ID)
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		auth.SetSessionCookie(w, result.Session.ID, result.Session.ExpiresAt, h.cookies)
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Token:     result.Session.ID,
			ExpiresAt: result.Session.ExpiresAt,
			User:      userToResponse(result.User),
		})

	case services.LoginLocked:
		pkghttp.WriteLocked(w,
			"Too many failed login attempts. Please try again later.",
			result.RetryAfterSeconds())

	case services.LoginDeny:
		remaining := result.AttemptsRemaining
		pkghttp.WriteJSON(w, http.StatusUnauthorized, DenyResponse{
			Error:             "invalid_credentials",
			Message:           invalidCredentialsMessage,
			AttemptsRemaining: &remaining,
		})

	default: // services.LoginInvalidCredentials
		pkghttp.WriteJSON(w, http.StatusUnauthorized, DenyResponse{
			Error:   "invalid_credentials",
			Message: invalidCredentialsMessage,
		})
	}
}

// Logout handles POST /auth/logout. Always succeeds for valid requests:
// revoking an unknown or expired token is a no-op.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionToken(r)

	if err := h.service.Logout(r.Context(), token); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me and returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// mapAccountError translates service errors into HTTP responses shared by
// the account management handlers.
func mapAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Username is already taken")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
