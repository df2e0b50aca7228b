package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhartley/toolshed/internal/models"
	pkgauth "github.com/dhartley/toolshed/pkg/auth"
)

// UserRepository defines the account store operations for staff management.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Delete(ctx context.Context, id string) error
	ClearLoginThrottle(ctx context.Context, username string, at time.Time) error
}

// UserService handles staff account management
type UserService struct {
	repo   UserRepository
	clock  func() time.Time
	logger *slog.Logger
}

func NewUserService(repo UserRepository, clock func() time.Time, logger *slog.Logger) *UserService {
	if clock == nil {
		clock = time.Now
	}
	return &UserService{repo: repo, clock: clock, logger: logger}
}

// Register creates a new account with the given role.
func (s *UserService) Register(ctx context.Context, username, password, name, role string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	name = strings.TrimSpace(name)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrBadRequest)
	}
	if role == "" {
		role = models.RoleStaff
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrBadRequest, role)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         role,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration failed: username taken")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account registered",
		slog.String("user_id", created.ID),
		slog.String("role", created.Role))

	return created, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.String("user_id", id))
	return nil
}

// Unlock is the explicit admin unlock: it clears any cooldown and resets the
// failure counter in one step, so a cleared cooldown never leaves a stale
// counter behind.
func (s *UserService) Unlock(ctx context.Context, username string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	if err := s.repo.ClearLoginThrottle(ctx, username, s.clock()); err != nil {
		return err
	}

	s.logger.Info("account unlocked", slog.String("username", username))
	return nil
}
