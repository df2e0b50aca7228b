package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/dhartley/toolshed/internal/database"
	"github.com/dhartley/toolshed/internal/guard"
	"github.com/dhartley/toolshed/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository handles database operations for user accounts, including
// the login-throttling columns. All throttle mutations are single-statement
// per-row updates so concurrent attempts for the same username serialize in
// the database rather than racing in process.
type AccountRepository struct {
	pool   *pgxpool.Pool
	policy guard.Policy
}

func NewAccountRepository(db *database.DB, policy guard.Policy) *AccountRepository {
	return &AccountRepository{pool: db.Pool, policy: policy}
}

const accountColumns = `id, username, password_hash, name, role, failed_attempts, last_failed_at, cooldown_until, created_at, updated_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lastFailedAt, cooldownUntil *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Name, &user.Role,
		&user.FailedAttempts, &lastFailedAt, &cooldownUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LastFailedAt = lastFailedAt
	user.CooldownUntil = cooldownUntil

	return &user, nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE username = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + accountColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *AccountRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleStaff
	}

	query := `
		INSERT INTO users (id, username, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Name, user.Role,
		user.CreatedAt, user.UpdatedAt,
	))
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordLoginFailure applies a failed-attempt mutation in one atomic
// statement: the increment and the threshold re-check happen on the stored
// counter, not on whatever stale value this process read. Two concurrent
// failures therefore never both observe the same counter. The soft cooldown
// is set only on the failure that lands exactly on the soft threshold; at or
// past the hard threshold every failure sets a fresh hard cooldown.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, username string, at time.Time) (*models.User, error) {
	query := `
		UPDATE users SET
			failed_attempts = failed_attempts + 1,
			last_failed_at  = $2,
			cooldown_until  = CASE
				WHEN failed_attempts + 1 >= $3 THEN $5::timestamptz
				WHEN failed_attempts + 1 = $4  THEN $6::timestamptz
				ELSE cooldown_until
			END,
			updated_at = $2
		WHERE username = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		username, at,
		r.policy.HardThreshold, r.policy.SoftThreshold,
		at.Add(r.policy.HardCooldown), at.Add(r.policy.SoftCooldown),
	))
}

// ClearLoginThrottle resets the failure counter and removes any cooldown.
// Used on successful authentication and on explicit admin unlock; the reset
// is unconditional even when the counter is already zero.
func (r *AccountRepository) ClearLoginThrottle(ctx context.Context, username string, at time.Time) error {
	query := `
		UPDATE users SET
			failed_attempts = 0,
			last_failed_at  = NULL,
			cooldown_until  = NULL,
			updated_at      = $2
		WHERE username = $1
	`

	result, err := r.pool.Exec(ctx, query, username, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SweepElapsedCooldowns nulls cooldown_until on rows where it has elapsed.
// Storage hygiene only: read paths already treat
// an elapsed cooldown as absent, and the failure counter is left untouched.
func (r *AccountRepository) SweepElapsedCooldowns(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE users SET cooldown_until = NULL
		WHERE cooldown_until IS NOT NULL AND cooldown_until <= $1
	`

	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
