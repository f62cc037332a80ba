package routes

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
	"github.com/traffic-tacos/user-auth-api/internal/config"
	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	"github.com/traffic-tacos/user-auth-api/internal/middleware"
	"github.com/traffic-tacos/user-auth-api/internal/users"
)

// Services are the core components the routes delegate to
type Services struct {
	Auth      *auth.Service
	Users     *users.Service
	Directory directory.Directory
}

// NewApp creates the Fiber app with the global middleware stack
func NewApp(cfg *config.Config, logger *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "User Auth API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Idempotency-Key",
		// wildcard origins cannot be combined with credentials
		AllowCredentials: cfg.CORS.AllowOrigins != "*",
		MaxAge:           86400,
	}))
	app.Use(otelfiber.Middleware())
	app.Use(metrics.HTTPMetricsMiddleware())

	return app
}

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, mw *middleware.Manager, svc Services) {
	authHandler := NewAuthHandler(svc.Auth, logger)
	usersHandler := NewUsersHandler(svc.Users, logger)
	healthHandler := NewHealthHandler(svc.Directory, mw.RedisProbe(), mw.IdempotencyBreakerState(), logger)

	// Health check endpoints (no auth required)
	app.Get("/", mw.Auth.OptionalAuth(), Root)
	app.Get("/health", healthHandler.Health)
	app.Get("/healthz", healthHandler.Live)
	app.Get("/readyz", healthHandler.Ready)
	app.Get("/version", Version)

	// Metrics endpoint (no auth required)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())

	// Auth routes (public)
	authRoutes := app.Group("/auth", mw.ErrorLogger.Handle())
	authRoutes.Post("/register", mw.IdempotencyHandler(), authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/login-json", authHandler.LoginJSON)

	// User routes (bearer token required)
	userRoutes := app.Group("/users", mw.ErrorLogger.Handle(), mw.Auth.RequireAuth())
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/me", usersHandler.Me)
	userRoutes.Get("/count", usersHandler.Count)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Deactivate)

	// 404 handler
	app.Use(notFoundHandler)
}
