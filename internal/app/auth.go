package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/pscheid92/blastdesk/internal/domain"
)

const tokenIssuer = "blastdesk"

// AuthService verifies admin credentials and issues HS256 access tokens.
type AuthService struct {
	admins    domain.AdminRepository
	denylist  domain.TokenDenylist
	secret    []byte
	ttl       time.Duration
	clock     clockwork.Clock
	cost      int
	dummyHash []byte
}

type AuthOption func(*AuthService)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

func NewAuthService(admins domain.AdminRepository, denylist domain.TokenDenylist, secret string, ttl time.Duration, clock clockwork.Clock, opts ...AuthOption) (*AuthService, error) {
	s := &AuthService{
		admins:   admins,
		denylist: denylist,
		secret:   []byte(secret),
		ttl:      ttl,
		clock:    clock,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Compared against on unknown emails so both failure paths cost a hash.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hashing: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAdminNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	if err := s.admins.TouchLogin(ctx, admin.ID, now); err != nil {
		slog.Warn("Failed to record login time", "admin_id", admin.ID, "error", err)
	} else {
		admin.LastLoginAt = &now
	}

	token, expiresAt, err := s.issue(admin.ID, now)
	if err != nil {
		return nil, err
	}
	slog.Info("Admin logged in", "admin_id", admin.ID)
	return &domain.LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

func (s *AuthService) issue(adminID uuid.UUID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   adminID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

func (s *AuthService) parse(token string) (*domain.TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	adminID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return nil, domain.ErrInvalidToken
	}
	return &domain.TokenClaims{AdminID: adminID, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Authenticate checks the signature, expiry and denylist.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token denylist: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.denylist.Revoke(ctx, claims.TokenID, claims.ExpiresAt.Sub(s.clock.Now())); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	slog.Info("Admin logged out", "admin_id", claims.AdminID)
	return nil
}

func (s *AuthService) GetAdmin(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error) {
	return s.admins.GetByID(ctx, adminID)
}

func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*domain.Admin, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.admins.Create(ctx, email, string(hash))
}

// EnsureBootstrapAdmin creates the first admin when none exist yet. It is a
// no-op when email is empty or any admin is already present.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	count, err := s.admins.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin, err := s.CreateAdmin(ctx, email, password)
	if errors.Is(err, domain.ErrAdminExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	slog.Info("Bootstrap admin created", "admin_id", admin.ID, "email", admin.Email)
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, adminID uuid.UUID, current, next string) error {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(current)); err != nil {
		return domain.ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.admins.UpdatePassword(ctx, adminID, string(hash))
}
