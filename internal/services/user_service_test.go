package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dhartley/toolshed/internal/models"
	"github.com/dhartley/toolshed/internal/services"
	pkgauth "github.com/dhartley/toolshed/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockUserRepo extends the account repo with the management operations.
type MockUserRepo struct {
	*MockAccountRepo
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{MockAccountRepo: NewMockAccountRepo()}
}

func (m *MockUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, exists := m.users[user.Username]; exists {
		return nil, models.ErrConflict
	}
	user.ID = "id-" + user.Username
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.Username] = user
	copied := *user
	return &copied, nil
}

func (m *MockUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		copied := *user
		users = append(users, &copied)
	}
	return users, nil
}

func (m *MockUserRepo) Delete(ctx context.Context, id string) error {
	for username, user := range m.users {
		if user.ID == id {
			delete(m.users, username)
			return nil
		}
	}
	return models.ErrNotFound
}

func newUserService(repo *MockUserRepo, clock *fakeClock) *services.UserService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return services.NewUserService(repo, clock.Now, logger)
}

func TestUserServiceRegister(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	repo := NewMockUserRepo()
	service := newUserService(repo, clock)
	ctx := context.Background()

	created, err := service.Register(ctx, "  Bob  ", "sturdy password 9", "Bob Hart", models.RoleSupplier)
	require.NoError(t, err)
	assert.Equal(t, "bob", created.Username)
	assert.Equal(t, models.RoleSupplier, created.Role)
	assert.NoError(t, pkgauth.ComparePassword(created.PasswordHash, "sturdy password 9"))

	_, err = service.Register(ctx, "bob", "sturdy password 9", "Bob Hart", models.RoleSupplier)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserServiceRegister_RejectsBadInput(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	service := newUserService(NewMockUserRepo(), clock)
	ctx := context.Background()

	_, err := service.Register(ctx, "", "sturdy password 9", "N", models.RoleStaff)
	assert.Error(t, err)

	_, err = service.Register(ctx, "bob", "short", "N", models.RoleStaff)
	assert.Error(t, err)

	_, err = service.Register(ctx, "bob", "sturdy password 9", "N", "superuser")
	assert.Error(t, err)
}

func TestUserServiceUnlock_ClearsThrottleState(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	repo := NewMockUserRepo()
	service := newUserService(repo, clock)
	ctx := context.Background()

	until := clock.Now().Add(5 * time.Minute)
	failedAt := clock.Now()
	repo.users["carol"] = &models.User{
		ID:             "id-carol",
		Username:       "carol",
		FailedAttempts: 5,
		LastFailedAt:   &failedAt,
		CooldownUntil:  &until,
	}

	require.NoError(t, service.Unlock(ctx, "Carol"))

	assert.Zero(t, repo.users["carol"].FailedAttempts)
	assert.Nil(t, repo.users["carol"].LastFailedAt)
	assert.Nil(t, repo.users["carol"].CooldownUntil)

	assert.ErrorIs(t, service.Unlock(ctx, "nosuchuser"), models.ErrNotFound)
}
