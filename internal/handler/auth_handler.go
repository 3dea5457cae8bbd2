package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/auth"
)

// AuthHandler answers the gateway's ForwardAuth calls
type AuthHandler struct {
	resolver *auth.Resolver
}

func NewAuthHandler(verifier auth.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{resolver: auth.NewResolver(verifier, jwtSecret)}
}

// Verify handles GET /auth/verify. On success the caller identity is
// returned in X-User-* headers for the gateway to forward.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	id, err := h.resolver.Resolve(c.Get("Authorization"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set("X-User-Id", id.UserID)
	if id.Email != "" {
		c.Set("X-User-Email", id.Email)
	}
	if id.Name != "" {
		c.Set("X-User-Name", id.Name)
	}
	return c.SendStatus(fiber.StatusOK)
}
