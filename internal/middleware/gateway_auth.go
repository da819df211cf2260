package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/pkg/response"
)

// Identity headers set by the gateway after ForwardAuth.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderPartnerID = "X-User-Partner"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth and populates Fiber context locals.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, &auth.Identity{
			UserID:    userID,
			Email:     c.Get(HeaderUserEmail),
			Name:      c.Get(HeaderUserName),
			PartnerID: c.Get(HeaderPartnerID),
		})
		return c.Next()
	}
}
