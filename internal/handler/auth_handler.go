package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/internal/middleware"
)

// AuthHandler handles ForwardAuth verification for the API gateway
type AuthHandler struct {
	auth *auth.Authenticator
}

func NewAuthHandler(a *auth.Authenticator) *AuthHandler {
	return &AuthHandler{auth: a}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	id, err := h.auth.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(middleware.HeaderUserID, id.UserID)
	c.Set(middleware.HeaderUserEmail, id.Email)
	if id.Name != "" {
		c.Set(middleware.HeaderUserName, id.Name)
	}
	if id.PartnerID != "" {
		c.Set(middleware.HeaderPartnerID, id.PartnerID)
	}
	return c.SendStatus(fiber.StatusOK)
}
