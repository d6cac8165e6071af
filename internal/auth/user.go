package auth

import (
	"context"
	"errors"
	"time"
)

// User is a player or administrator account. Name is the in-world account
// name that owns the player entity; Email is what the client logs in with.
type User struct {
	ID           uint64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    time.Time
	IsAdmin      bool
}

// UserRepository persists accounts. Emails and names are case-insensitive.
type UserRepository interface {
	// GetUserByEmail returns (nil, ErrUserNotFound) for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uint64) (*User, error)
	// CreateUser expects a bcrypt hash and returns ErrUserExists when the
	// email or name is taken.
	CreateUser(ctx context.Context, email, name, passwordHash string, isAdmin bool) (*User, error)
	UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error
	Close() error
}

// Domain-level errors returned by repositories.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)
