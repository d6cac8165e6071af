package auth

import (
	"context"
	"errors"
	"fmt"
)

// SeedDefaultUsers creates the test player and the admin when the repository
// does not know them yet.
func SeedDefaultUsers(ctx context.Context, repo UserRepository, testPassword, adminPassword string) error {
	seeds := []struct {
		email, name, password string
		admin                 bool
	}{
		{"test@archipelo.local", "test", testPassword, false},
		{"admin@archipelo.local", "admin", adminPassword, true},
	}
	for _, s := range seeds {
		if s.password == "" {
			continue
		}
		hash, err := HashPassword(s.password)
		if err != nil {
			return fmt.Errorf("ошибка хеширования пароля %s: %w", s.name, err)
		}
		if _, err := repo.CreateUser(ctx, s.email, s.name, hash, s.admin); err != nil && !errors.Is(err, ErrUserExists) {
			return fmt.Errorf("не удалось создать пользователя %s: %w", s.name, err)
		}
	}
	return nil
}
