package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
)

const principalKey = "principal"

type AuthMiddleware struct {
	gate   *auth.Gate
	logger *logrus.Logger
}

func NewAuthMiddleware(gate *auth.Gate, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		gate:   gate,
		logger: logger,
	}
}

// RequireAuth rejects the request unless it carries a valid bearer token for
// an active account. The error is rendered by the app's error handler.
func (a *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := a.gate.Authenticate(c.UserContext(), bearerToken(c))
		if err != nil {
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Authentication failed")
			return err
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// OptionalAuth attaches a principal when the token is valid and lets
// anonymous requests through otherwise.
func (a *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal := a.gate.AuthenticateOptional(c.UserContext(), bearerToken(c)); principal != nil {
			c.Locals(principalKey, principal)
		}
		return c.Next()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>". A
// missing header or another scheme yields "".
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetPrincipal returns the authenticated caller, or nil
func GetPrincipal(c *fiber.Ctx) *auth.Principal {
	if p, ok := c.Locals(principalKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if p := GetPrincipal(c); p != nil {
		return p.UserID
	}
	return ""
}
