package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/domain"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles. With no
// roles given it only requires authentication.
func RequireRole(allowed ...domain.EngineerRole) fiber.Handler {
	allowedSet := make(map[domain.EngineerRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Engineer == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Engineer.Role]; !exists {
			return apperrors.NewNotAuthorized("insufficient role")
		}
		return c.Next()
	}
}
