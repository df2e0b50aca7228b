package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhartley/toolshed/internal/auth"
	"github.com/dhartley/toolshed/internal/guard"
	"github.com/dhartley/toolshed/internal/models"
	pkgauth "github.com/dhartley/toolshed/pkg/auth"
	pkglogger "github.com/dhartley/toolshed/pkg/logger"
)

// AccountRepository defines the account store operations the auth service
// depends on. RecordLoginFailure must apply its increment atomically per
// username; see the repositories package.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	RecordLoginFailure(ctx context.Context, username string, at time.Time) (*models.User, error)
	ClearLoginThrottle(ctx context.Context, username string, at time.Time) error
}

// SessionManager defines the session lifecycle operations the auth service
// depends on.
type SessionManager interface {
	Create(ctx context.Context, userID string) (*models.Session, error)
	Validate(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) (bool, error)
}

// LoginOutcome classifies the result of a login call. All outcomes are
// values; errors are reserved for store failures.
type LoginOutcome string

const (
	LoginAllow              LoginOutcome = "allow"
	LoginDeny               LoginOutcome = "deny"
	LoginLocked             LoginOutcome = "locked"
	LoginInvalidCredentials LoginOutcome = "invalid_credentials"
)

// LoginResult carries the outcome plus the fields relevant to it.
type LoginResult struct {
	Outcome           LoginOutcome
	Session           *models.Session // allow only
	User              *models.User    // allow only
	AttemptsRemaining int             // deny only
	RetryAfter        time.Duration   // locked only
}

// RetryAfterSeconds returns the remaining cooldown rounded up to whole
// seconds, suitable for a Retry-After header.
func (r *LoginResult) RetryAfterSeconds() int {
	return int((r.RetryAfter + time.Second - 1) / time.Second)
}

// AuthenticatedContext is the result of a successful session check.
type AuthenticatedContext struct {
	User    *models.User
	Session *models.Session
}

// AuthService orchestrates the login guard and the session manager. It holds
// no mutable state of its own; everything mutable lives in the stores.
type AuthService struct {
	accounts AccountRepository
	sessions SessionManager
	guard    *guard.Guard
	timing   *auth.TimingDelay
	clock    func() time.Time
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService. A nil clock defaults to time.Now.
func NewAuthService(
	accounts AccountRepository,
	sessions SessionManager,
	g *guard.Guard,
	timing *auth.TimingDelay,
	clock func() time.Time,
	logger *slog.Logger,
) *AuthService {
	if clock == nil {
		clock = time.Now
	}
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		guard:    g,
		timing:   timing,
		clock:    clock,
		logger:   logger,
	}
}

// Login authenticates a username/password pair. An unknown username and a
// wrong password produce the same InvalidCredentials/Deny shape and, via the
// timing delay, roughly the same response time. Only store failures return a
// non-nil error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	start := time.Now()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		s.timing.WaitFrom(start, false)
		return &LoginResult{Outcome: LoginInvalidCredentials}, nil
	}

	user, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same outcome shape as a wrong password: never reveal
			// whether the username exists.
			s.logger.Info("login failed: invalid credentials")
			s.timing.WaitFrom(start, false)
			return &LoginResult{Outcome: LoginInvalidCredentials}, nil
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	passwordCorrect := pkgauth.ComparePassword(user.PasswordHash, password) == nil

	now := s.clock()
	state := guard.SecurityState{
		FailedAttempts: user.FailedAttempts,
		LastFailedAt:   user.LastFailedAt,
		CooldownUntil:  user.CooldownUntil,
	}
	decision, mutation := s.guard.Evaluate(state, passwordCorrect, now)

	// Persist the mutation before surfacing the decision. The failure path
	// is a single atomic increment-and-check in the store, so concurrent
	// attempts for the same username cannot both observe a stale counter.
	switch mutation.Kind {
	case guard.MutationFailure:
		if _, err := s.accounts.RecordLoginFailure(ctx, username, now); err != nil {
			s.logger.Error("failed to record login failure",
				slog.String("username", pkglogger.SanitizedUsername(username)),
				slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
	case guard.MutationReset:
		if err := s.accounts.ClearLoginThrottle(ctx, username, now); err != nil {
			s.logger.Error("failed to clear login throttle",
				slog.String("username", pkglogger.SanitizedUsername(username)),
				slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
	}

	switch decision.Outcome {
	case guard.OutcomeLocked:
		s.logger.Warn("login attempt on locked account",
			slog.String("user_id", user.ID),
			slog.Int("failed_attempts", decision.AttemptsSoFar),
			slog.Duration("remaining", decision.Remaining))
		s.timing.WaitFrom(start, false)
		return &LoginResult{Outcome: LoginLocked, RetryAfter: decision.Remaining}, nil

	case guard.OutcomeDeny:
		s.logger.Info("login failed: invalid credentials",
			slog.String("user_id", user.ID),
			slog.Int("attempts_remaining", decision.AttemptsRemaining))
		s.timing.WaitFrom(start, false)
		return &LoginResult{
			Outcome:           LoginDeny,
			AttemptsRemaining: decision.AttemptsRemaining,
		}, nil

	default: // guard.OutcomeAllow
		sess, err := s.sessions.Create(ctx, user.ID)
		if err != nil {
			s.logger.Error("failed to create session",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}

		s.logger.Info("user logged in", slog.String("user_id", user.ID))
		return &LoginResult{Outcome: LoginAllow, Session: sess, User: user}, nil
	}
}

// CheckSession validates a bearer token and resolves its owning account.
// Unknown, malformed and expired tokens all return models.ErrUnauthorized.
func (s *AuthService) CheckSession(ctx context.Context, token string) (*AuthenticatedContext, error) {
	sess, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return &AuthenticatedContext{User: user, Session: sess}, nil
}

// Logout revokes the session behind the token. Revoking an unknown or
// already-expired token is a no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	existed, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		s.logger.Error("failed to revoke session", slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	if existed {
		s.logger.Info("user logged out")
	}
	return nil
}
