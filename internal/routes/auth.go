package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	svc    *auth.Service
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register handles user registration
// POST /auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	user, err := h.svc.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles form-encoded login. It does not check the active flag; the
// gate rejects tokens of deactivated accounts on first use.
// POST /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	return h.login(c, auth.LoginOptions{RequireActive: false})
}

// LoginJSON handles JSON login and refuses deactivated accounts.
// POST /auth/login-json
func (h *AuthHandler) LoginJSON(c *fiber.Ctx) error {
	return h.login(c, auth.LoginOptions{RequireActive: true})
}

func (h *AuthHandler) login(c *fiber.Ctx, opts auth.LoginOptions) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	resp, err := h.svc.Login(c.UserContext(), req.Username, req.Password, opts)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(resp)
}
