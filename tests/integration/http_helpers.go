package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/config"
	"github.com/dhartley/toolshed/internal/database"
	"github.com/dhartley/toolshed/internal/guard"
	"github.com/dhartley/toolshed/internal/handlers"
	middlewareCustom "github.com/dhartley/toolshed/internal/middleware"
	toolshedredis "github.com/dhartley/toolshed/internal/redis"
	"github.com/dhartley/toolshed/internal/repositories"
	"github.com/dhartley/toolshed/internal/routes"
	"github.com/dhartley/toolshed/internal/services"
	"github.com/dhartley/toolshed/internal/session"
)

// TestServer wraps httptest.Server with real database and redis backends
type TestServer struct {
	Server      *httptest.Server
	DB          *database.DB
	RedisClient *goredis.Client
	Config      *config.Config

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server against real stores. The
// timing delay is zeroed so lockout tests aren't slowed by the anti-probing
// pad.
func NewTestServer(db *database.DB, redisURL string) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			SoftLockThreshold:   3,
			HardLockThreshold:   5,
			SoftLockCooldown:    1 * time.Minute,
			HardLockCooldown:    5 * time.Minute,
			SessionTTL:          24 * time.Hour,
			TimingDelayBaseMs:   0,
			TimingDelayRandomMs: 0,
			CleanupInterval:     1 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
		},
	}

	redisClient, err := toolshedredis.NewClient(context.Background(), redisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	policy := guard.Policy{
		SoftThreshold: cfg.Auth.SoftLockThreshold,
		HardThreshold: cfg.Auth.HardLockThreshold,
		SoftCooldown:  cfg.Auth.SoftLockCooldown,
		HardCooldown:  cfg.Auth.HardLockCooldown,
	}

	accountRepo := repositories.NewAccountRepository(db, policy)
	sessionRepo := repositories.NewSessionRepository(redisClient)
	sessionManager := session.NewManager(sessionRepo, cfg.Auth.SessionTTL, nil, logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	authService := services.NewAuthService(accountRepo, sessionManager, guard.New(policy), timingDelay, nil, logger)
	userService := services.NewUserService(accountRepo, nil, logger)

	cookieConfig := auth.CookieConfig{SameSite: "lax"}
	authHandler := handlers.NewAuthHandler(authService, cookieConfig)
	userHandler := handlers.NewUserHandler(userService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// A high login limit keeps the per-IP limiter out of the way; every test
	// request arrives from localhost.
	routes.RegisterRoutes(r, authHandler, userHandler, sessionManager, accountRepo,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000})

	server := httptest.NewServer(r)

	return &TestServer{
		Server:      server,
		DB:          db,
		RedisClient: redisClient,
		Config:      cfg,
		logger:      logger,
	}, nil
}

// Close shuts down the test server and its redis client
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.RedisClient != nil {
		ts.RedisClient.Close()
	}
}

// FlushSessions clears all session state between tests
func (ts *TestServer) FlushSessions(ctx context.Context) error {
	return ts.RedisClient.FlushDB(ctx).Err()
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// Login posts credentials and returns the raw response
func (ts *TestServer) Login(username, password string) (*http.Response, error) {
	return ts.Request("POST", "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
}

// RequestWithAuth makes an authenticated HTTP request using the bearer
// fallback transport
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// SessionTokenFromResponse extracts the token field from a successful login
func SessionTokenFromResponse(resp *http.Response) (string, error) {
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := ParseJSONResponse(resp, &loginResp); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if loginResp.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return loginResp.Token, nil
}
