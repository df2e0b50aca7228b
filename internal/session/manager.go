// Package session mints, validates and revokes opaque bearer session tokens
// with a fixed absolute expiry. Expiry is lazy: it is checked on every read,
// and an expired row is deleted when the read observes it. No background
// sweep is required for correctness.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhartley/toolshed/internal/models"
)

// TokenBytes is the entropy of a session id: 128 bits, hex encoded.
const TokenBytes = 16

// DefaultTTL is the absolute session lifetime, fixed at creation.
const DefaultTTL = 24 * time.Hour

// Store is the external persistence the manager calls into. Find returns
// models.ErrNotFound for an absent id; any other error means the store is
// unreachable and propagates to the caller unchanged.
type Store interface {
	Insert(ctx context.Context, sess *models.Session) error
	Find(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Manager issues and checks sessions against a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	clock  func() time.Time
	logger *slog.Logger
}

// NewManager creates a session manager. A nil clock defaults to time.Now;
// tests inject a fake clock to drive expiry.
func NewManager(store Store, ttl time.Duration, clock func() time.Time, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}
}

// Create mints a fresh session for the user and persists it. Multiple
// concurrent sessions per user are permitted.
func (m *Manager) Create(ctx context.Context, userID string) (*models.Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.clock()
	sess := &models.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Insert(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("session created",
		slog.String("user_id", userID),
		slog.Time("expires_at", sess.ExpiresAt))

	return sess, nil
}

// Validate looks up a session by id. Unknown, malformed and expired tokens
// all collapse to models.ErrUnauthorized; only store failures surface as
// anything else. An expired row is deleted on the way out.
func (m *Manager) Validate(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, models.ErrUnauthorized
	}

	sess, err := m.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if sess.Expired(m.clock()) {
		// Lazy expiry: delete the row now that a read has observed it.
		// Failure to delete is only a hygiene problem, never a validation one.
		if _, err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to delete expired session", slog.Any("error", err))
		}
		return nil, models.ErrUnauthorized
	}

	return sess, nil
}

// Revoke deletes a session unconditionally and reports whether one existed.
// Revoking an unknown or already-expired session is not an error.
func (m *Manager) Revoke(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return m.store.Delete(ctx, id)
}

func generateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
