package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Admin struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

type AdminRepository interface {
	GetByID(ctx context.Context, adminID uuid.UUID) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	Create(ctx context.Context, email, passwordHash string) (*Admin, error)
	UpdatePassword(ctx context.Context, adminID uuid.UUID, passwordHash string) error
	TouchLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// TokenClaims is what a verified access token asserts.
type TokenClaims struct {
	AdminID   uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *Admin
}

// TokenDenylist remembers revoked token IDs until the token would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
