package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/auth"
	"github.com/luzdodia/api/pkg/response"
)

// AuthMiddleware verifies bearer tokens and stores the caller in locals
type AuthMiddleware struct {
	resolver *auth.Resolver
}

// NewAuthMiddleware accepts OIDC tokens and, when jwtSecret is set, legacy
// HMAC tokens.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{resolver: auth.NewResolver(verifier, jwtSecret)}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := m.resolver.Resolve(c.Get("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrMalformed) || errors.Is(err, auth.ErrNotConfigured) {
				return response.Unauthorized(c, err.Error())
			}
			return response.Unauthorized(c, "Invalid or expired token")
		}

		setIdentity(c, id)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals("userId", id.UserID)
	c.Locals("email", id.Email)
	c.Locals("name", id.Name)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}
