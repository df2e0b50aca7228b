package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/background"
	"github.com/dhartley/toolshed/internal/config"
	"github.com/dhartley/toolshed/internal/database"
	"github.com/dhartley/toolshed/internal/guard"
	"github.com/dhartley/toolshed/internal/handlers"
	middlewareCustom "github.com/dhartley/toolshed/internal/middleware"
	"github.com/dhartley/toolshed/internal/models"
	toolshedredis "github.com/dhartley/toolshed/internal/redis"
	"github.com/dhartley/toolshed/internal/repositories"
	"github.com/dhartley/toolshed/internal/routes"
	"github.com/dhartley/toolshed/internal/services"
	"github.com/dhartley/toolshed/internal/session"
	pkgauth "github.com/dhartley/toolshed/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize redis for session storage
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := toolshedredis.NewClient(redisCtx, cfg.Redis.URL, logger)
	redisCancel()
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Lockout policy from config
	policy := guard.Policy{
		SoftThreshold: cfg.Auth.SoftLockThreshold,
		HardThreshold: cfg.Auth.HardLockThreshold,
		SoftCooldown:  cfg.Auth.SoftLockCooldown,
		HardCooldown:  cfg.Auth.HardLockCooldown,
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db, policy)
	sessionRepo := repositories.NewSessionRepository(redisClient)

	// Session manager over the redis store
	sessionManager := session.NewManager(sessionRepo, cfg.Auth.SessionTTL, nil, logger)

	// Timing delay keeps failed-login response times flat
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Initialize services
	authService := services.NewAuthService(accountRepo, sessionManager, guard.New(policy), timingDelay, nil, logger)
	userService := services.NewUserService(accountRepo, nil, logger)

	// Session cookie settings
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "lax",
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cookieConfig)
	userHandler := handlers.NewUserHandler(userService)

	// Bootstrap first admin account if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	bootCancel()

	// Elapsed cooldowns are invisible to the login path; the sweeper just
	// keeps the table tidy.
	cleanupManager := background.NewCleanupManager(accountRepo, logger, cfg.Auth.CleanupInterval, nil)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, cfg.Server.TrustProxy))
	router.Use(middlewareCustom.CSRFProtection(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, userHandler, sessionManager, accountRepo,
		middlewareCustom.DefaultLoginRateLimit())

	// Health check covering both stores
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus := "up", "up"
		if err := db.HealthCheck(ctx); err != nil {
			dbStatus = "down"
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}

		w.Header().Set("Content-Type", "application/json")
		if dbStatus == "down" || redisStatus == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","database":%q,"redis":%q}`, dbStatus, redisStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","database":%q,"redis":%q}`, dbStatus, redisStatus)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin account if ADMIN_USERNAME and
// ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, accountRepo *repositories.AccountRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	// Check if admin already exists
	_, err := accountRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     adminUsername,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         models.RoleAdmin,
	}

	if _, err := accountRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created")
	return nil
}
