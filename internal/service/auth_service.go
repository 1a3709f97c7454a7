package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// AuthService handles engineer login and registration. Session management
// beyond token issuance is an external concern.
type AuthService struct {
	engineers repository.EngineerRepository
	tokens    *auth.TokenManager
	cfg       config.AuthConfig
}

// EngineerRegisterInput describes registration payload.
type EngineerRegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.EngineerRole
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, engineers repository.EngineerRepository) *AuthService {
	return &AuthService{
		engineers: engineers,
		tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:       cfg,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Engineer, string, time.Time, error) {
	engineer, err := s.engineers.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !engineer.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("engineer deactivated")
	}
	if err := auth.ComparePassword(engineer.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(engineer.ID, engineer.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return engineer, token, expiresAt, nil
}

// RegisterEngineer creates an engineer account.
func (s *AuthService) RegisterEngineer(ctx context.Context, input EngineerRegisterInput) (*domain.Engineer, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password required", nil)
	}
	if input.Role == "" {
		input.Role = domain.RoleEngineer
	}

	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	engineer := &domain.Engineer{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.engineers.Create(ctx, engineer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return engineer, nil
}
