package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/archipelo-server/internal/logging"
)

// ErrBadCredentials is returned for an unknown email or a wrong password.
var ErrBadCredentials = errors.New("bad credentials")

// RepoAuthenticator checks email/password pairs against a UserRepository.
type RepoAuthenticator struct {
	repo   UserRepository
	logger *logging.Logger
	now    func() time.Time
}

func NewRepoAuthenticator(repo UserRepository, logger *logging.Logger) *RepoAuthenticator {
	if logger == nil {
		logger = logging.GetComponentLogger(logging.ComponentAuth)
	}
	return &RepoAuthenticator{repo: repo, logger: logger, now: time.Now}
}

// Login verifies credentials and records the login time.
func (a *RepoAuthenticator) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := a.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrBadCredentials
	}

	user.LastLogin = a.now()
	if err := a.repo.UpdateLastLogin(ctx, user.ID, user.LastLogin); err != nil {
		a.logger.Warn("Не удалось обновить время входа %s: %v", user.Name, err)
	}
	return user, nil
}

// Authenticate returns the account name owning the player entity.
func (a *RepoAuthenticator) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := a.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}
