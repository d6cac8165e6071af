package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo is a threadsafe in-memory repository for tests and
// single-instance servers. IDs start from 1.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	byID    map[uint64]*User
	names   map[string]uint64
	nextID  uint64
}

// NewMemoryUserRepo returns an empty repository.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byEmail: make(map[string]*User),
		byID:    make(map[uint64]*User),
		names:   make(map[string]uint64),
		nextID:  1,
	}
}

// NewSeededMemoryUserRepo returns a repository with a test player
// (test@archipelo.local / test) and an admin (admin@archipelo.local / admin).
func NewSeededMemoryUserRepo() (*MemoryUserRepo, error) {
	repo := NewMemoryUserRepo()
	if err := SeedDefaultUsers(context.Background(), repo, "test", "admin"); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *MemoryUserRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byEmail[normalize(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepo) GetUserByID(_ context.Context, id uint64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepo) CreateUser(_ context.Context, email, name, passwordHash string, isAdmin bool) (*User, error) {
	emailKey, nameKey := normalize(email), normalize(name)
	if emailKey == "" || nameKey == "" {
		return nil, fmt.Errorf("email и имя обязательны")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[emailKey]; exists {
		return nil, ErrUserExists
	}
	if _, exists := r.names[nameKey]; exists {
		return nil, ErrUserExists
	}

	now := time.Now()
	user := &User{
		ID:           r.nextID,
		Email:        emailKey,
		Name:         nameKey,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
		IsAdmin:      isAdmin,
	}
	r.nextID++
	r.byEmail[emailKey] = user
	r.byID[user.ID] = user
	r.names[nameKey] = user.ID
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepo) UpdateLastLogin(_ context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = at
	return nil
}

func (r *MemoryUserRepo) Close() error { return nil }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
