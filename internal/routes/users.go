package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/middleware"
	"github.com/traffic-tacos/user-auth-api/internal/models"
	"github.com/traffic-tacos/user-auth-api/internal/users"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

const (
	defaultSkip  = 0
	defaultLimit = 10
)

// UsersHandler handles account endpoints. Every route requires a principal.
type UsersHandler struct {
	svc    *users.Service
	logger *logrus.Logger
}

func NewUsersHandler(svc *users.Service, logger *logrus.Logger) *UsersHandler {
	return &UsersHandler{
		svc:    svc,
		logger: logger,
	}
}

// Me returns the caller's own record
// GET /users/me
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		return apperrors.Unauthenticated("Not authenticated", "missing_principal")
	}

	user, err := h.svc.Me(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// List returns a page of users
// GET /users?skip=0&limit=10
func (h *UsersHandler) List(c *fiber.Ctx) error {
	q := models.ListUsersQuery{Skip: defaultSkip, Limit: defaultLimit}
	if err := c.QueryParser(&q); err != nil {
		return apperrors.Validation("skip and limit must be integers")
	}
	if err := validateStruct(&q); err != nil {
		return err
	}

	list, err := h.svc.List(c.UserContext(), q.Skip, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// Count returns total and active user counts
// GET /users/count
func (h *UsersHandler) Count(c *fiber.Ctx) error {
	counts, err := h.svc.Count(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(counts)
}

// Get returns a single user
// GET /users/:id
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Update applies a partial update
// PUT /users/:id
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var upd models.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := validateStruct(&upd); err != nil {
		return err
	}

	user, err := h.svc.Update(c.UserContext(), c.Params("id"), upd)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Deactivate soft-deletes a user
// DELETE /users/:id
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	if err := h.svc.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
