package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/handlers"
	"github.com/dhartley/toolshed/internal/middleware"
	"github.com/dhartley/toolshed/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	sessions auth.SessionValidator,
	accounts auth.AccountLookup,
	loginLimit middleware.RateLimitConfig,
) {
	// Public routes - no authentication required. Logout is deliberately
	// public so a client holding a dead session can always clear it.
	router.With(middleware.RateLimitByIP(loginLimit)).
		Post("/auth/login", authHandler.Login)
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - valid session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessions, accounts))
		r.Use(middleware.RateLimitByAccount(middleware.DefaultAPIRateLimit()))

		// Any authenticated user
		r.Get("/auth/me", authHandler.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/auth/register", userHandler.Register)
			r.Get("/users", userHandler.List)
			r.Get("/users/{id}", userHandler.Get)
			r.Delete("/users/{id}", userHandler.Delete)
			r.Post("/admin/users/{username}/unlock", userHandler.Unlock)
		})
	})
}
