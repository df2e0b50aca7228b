package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/dhartley/toolshed/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// SessionValidator checks a bearer token and returns the live session.
type SessionValidator interface {
	Validate(ctx context.Context, id string) (*models.Session, error)
}

// AccountLookup resolves a session's owner.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionMiddleware validates the request's session token and injects the
// session and its owning account into the request context. Missing, unknown
// and expired tokens all produce the same 401; only a store failure differs.
func SessionMiddleware(sessions SessionValidator, accounts AccountLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)

			sess, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, models.ErrUnauthorized) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			user, err := accounts.GetByID(r.Context(), sess.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					// Account deleted while the session was live.
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), user, sess)))
		})
	}
}

// RequireRole enforces role-based access control. Must run after
// SessionMiddleware.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if user.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithAuth injects an authenticated account and its session into ctx.
func ContextWithAuth(ctx context.Context, user *models.User, sess *models.Session) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionContextKey, sess)
}

// UserFromContext returns the authenticated account, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// SessionFromContext returns the validated session, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionContextKey).(*models.Session)
	return sess
}
