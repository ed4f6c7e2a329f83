package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songgen/internal/auth"
	"github.com/makeasinger/songgen/pkg/response"
)

const identityKey = "identity"

// Authenticate resolves the requester from the bearer token. WebSocket
// upgrades may pass the token as ?token= because browsers cannot set
// headers on them.
func Authenticate(authn *auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := requestToken(c)
		if err != nil {
			if errors.Is(err, auth.ErrNoCredentials) {
				return response.Unauthorized(c, "Missing authorization header")
			}
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		id, err := authn.Authenticate(token)
		switch {
		case errors.Is(err, auth.ErrNotConfigured):
			return response.Unauthorized(c, "Authentication not configured")
		case err != nil:
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Gateway trusts the X-User-* headers set by Traefik ForwardAuth.
func Gateway() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.FromForwardHeaders(func(key string) string { return c.Get(key) })
		if err != nil {
			return response.Unauthorized(c, "Missing user identity headers")
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

func requestToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if token := c.Query("token"); token != "" && c.Get(fiber.HeaderUpgrade) != "" {
			return token, nil
		}
	}
	return auth.BearerToken(header)
}

// CurrentIdentity returns the identity established by Authenticate or
// Gateway, or the zero Identity.
func CurrentIdentity(c *fiber.Ctx) auth.Identity {
	id, _ := c.Locals(identityKey).(auth.Identity)
	return id
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	return CurrentIdentity(c).UserID
}
