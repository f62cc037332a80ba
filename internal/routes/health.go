package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/logging"
	"github.com/traffic-tacos/user-auth-api/internal/middleware"
)

const (
	serviceName  = "user-auth-api"
	probeTimeout = 2 * time.Second
)

// Build info, set with -ldflags "-X ..."
var (
	commit    = "unknown"
	buildTime = "unknown"
)

// HealthHandler reports liveness and dependency health
type HealthHandler struct {
	dir          directory.Directory
	redisProbe   func(context.Context) error // nil when Redis is disabled
	breakerState func() string               // nil when Redis is disabled
	logger       *logrus.Logger
}

func NewHealthHandler(dir directory.Directory, redisProbe func(context.Context) error, breakerState func() string, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		dir:          dir,
		redisProbe:   redisProbe,
		breakerState: breakerState,
		logger:       logger,
	}
}

// Health pings the directory and Redis; the service is degraded, not down,
// when one of them fails.
// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	checks := h.check(c.UserContext())

	status := "healthy"
	for _, s := range checks {
		if s != "healthy" {
			status = "degraded"
		}
	}

	resp := fiber.Map{
		"status":   status,
		"database": checks["database"],
		"version":  logging.GetVersion(),
	}
	if r, ok := checks["redis"]; ok {
		resp["redis"] = r
	}
	if h.breakerState != nil {
		resp["redis_breaker"] = h.breakerState()
	}
	return c.JSON(resp)
}

// Live returns the health status of the process
// GET /healthz
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}

// Ready checks if the service is ready to accept traffic
// GET /readyz
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	for name, s := range h.check(c.UserContext()) {
		if s != "healthy" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    name + " unavailable",
				"timestamp": time.Now().UTC(),
			})
		}
	}

	return c.JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}

func (h *HealthHandler) check(ctx context.Context) map[string]string {
	checks := map[string]string{"database": "healthy"}

	dctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := h.dir.Ping(dctx); err != nil {
		h.logger.WithError(err).Warn("Directory health check failed")
		checks["database"] = "unhealthy"
	}

	if h.redisProbe != nil {
		checks["redis"] = "healthy"
		if err := h.redisProbe(ctx); err != nil {
			h.logger.WithError(err).Warn("Redis health check failed")
			checks["redis"] = "unhealthy"
		}
	}
	return checks
}

// Version returns build information
// GET /version
func Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": serviceName,
		"version": logging.GetVersion(),
		"commit":  commit,
		"built":   buildTime,
	})
}

// Root greets the caller, by name when a valid token is supplied
// GET /
func Root(c *fiber.Ctx) error {
	resp := fiber.Map{
		"message": "Welcome to the user auth API",
		"health":  "/health",
	}
	if p := middleware.GetPrincipal(c); p != nil {
		resp["user"] = p.Username
	}
	return c.JSON(resp)
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return fiber.ErrNotFound
}
