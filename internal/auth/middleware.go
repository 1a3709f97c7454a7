package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Engineer *domain.Engineer
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	engineers repository.EngineerRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, engineers repository.EngineerRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, engineers: engineers}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	engineer, err := m.engineers.GetByID(c.Context(), claims.EngineerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("engineer not found")
		}
		return apperrors.MapError(err)
	}
	if !engineer.Active {
		return apperrors.NewUnauthorized("engineer deactivated")
	}

	c.Locals(principalKey, &Principal{Engineer: engineer})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
