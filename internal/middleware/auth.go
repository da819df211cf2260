package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/pkg/response"
)

const (
	localUserID    = "userId"
	localEmail     = "email"
	localName      = "name"
	localPartnerID = "partnerId"
)

// Authenticate validates the bearer token and stores the caller identity in
// the request locals.
func Authenticate(a *auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := a.Authenticate(c.Get(fiber.HeaderAuthorization))
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			return response.Unauthorized(c, "Missing authorization header")
		case errors.Is(err, auth.ErrMalformedHeader):
			return response.Unauthorized(c, "Invalid authorization header format")
		case errors.Is(err, auth.ErrNotConfigured):
			return response.Unauthorized(c, "Authentication not configured")
		case err != nil:
			return response.Unauthorized(c, "Invalid or expired token")
		}
		setIdentity(c, id)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals(localUserID, id.UserID)
	c.Locals(localEmail, id.Email)
	c.Locals(localName, id.Name)
	c.Locals(localPartnerID, id.PartnerID)
}

func local(c *fiber.Ctx, key string) string {
	if v, ok := c.Locals(key).(string); ok {
		return v
	}
	return ""
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string { return local(c, localUserID) }

// GetPartnerID returns the organization the caller belongs to, if any.
func GetPartnerID(c *fiber.Ctx) string { return local(c, localPartnerID) }
