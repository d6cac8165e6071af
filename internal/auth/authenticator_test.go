package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/archipelo-server/internal/logging"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "Secret"))
	assert.False(t, CheckPassword("not-a-hash", "secret"))

	_, err = HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = HashPassword(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.False(t, CheckPassword(hash, "secret"+strings.Repeat("x", MaxPasswordBytes)))
}

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	user, err := repo.CreateUser(ctx, "Alice@Example.com", "Alice", "hash", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.Name)

	_, err = repo.CreateUser(ctx, "alice@example.com", "other", "hash", false)
	assert.ErrorIs(t, err, ErrUserExists, "email занят")
	_, err = repo.CreateUser(ctx, "other@example.com", "ALICE", "hash", false)
	assert.ErrorIs(t, err, ErrUserExists, "имя занято")

	got, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetUserByID(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdateLastLogin(ctx, 99, got.LastLogin), ErrUserNotFound)
}

func TestRepoAuthenticator(t *testing.T) {
	repo, err := NewSeededMemoryUserRepo()
	require.NoError(t, err)
	logger, _ := logging.NewObservedLogger("auth")
	a := NewRepoAuthenticator(repo, logger)
	ctx := context.Background()

	t.Run("Valid credentials", func(t *testing.T) {
		account, err := a.Authenticate(ctx, "test@archipelo.local", "test")
		require.NoError(t, err)
		assert.Equal(t, "test", account)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "test@archipelo.local", "nope")
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("Unknown email", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "ghost@archipelo.local", "test")
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("Admin login", func(t *testing.T) {
		user, err := a.Login(ctx, "admin@archipelo.local", "admin")
		require.NoError(t, err)
		assert.True(t, user.IsAdmin)
	})
}
