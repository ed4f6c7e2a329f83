package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songgen/internal/auth"
)

// AuthHandler handles ForwardAuth verification for the API gateway
type AuthHandler struct {
	authn *auth.Authenticator
}

func NewAuthHandler(authn *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authn: authn}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure. The
// headers are what middleware.Gateway reads back on the API routes.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := h.authn.Authenticate(token)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	for k, v := range id.ForwardHeaders() {
		c.Set(k, v)
	}
	return c.SendStatus(fiber.StatusOK)
}
