package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dhartley/toolshed/internal/models"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionRepository persists sessions in Redis. Keys carry a TTL matching
// the session's absolute expiry, so the store physically drops expired rows
// on its own; the session manager still checks expiry on every read and never
// relies on the TTL for correctness.
type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// sessionRecord is the wire form stored in Redis. The id lives in the key.
type sessionRecord struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *SessionRepository) Insert(ctx context.Context, sess *models.Session) error {
	payload, err := json.Marshal(sessionRecord{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	if err := r.client.Set(ctx, sessionKeyPrefix+sess.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Find(ctx context.Context, id string) (*models.Session, error) {
	payload, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		// A corrupt row is unusable; treat it as absent rather than
		// failing every request that presents the token.
		return nil, models.ErrNotFound
	}
	if record.UserID == "" || record.ExpiresAt.IsZero() {
		return nil, models.ErrNotFound
	}

	return &models.Session{
		ID:        id,
		UserID:    record.UserID,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return deleted > 0, nil
}
