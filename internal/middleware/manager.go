package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
	"github.com/traffic-tacos/user-auth-api/internal/config"
)

// Manager holds all middleware instances
type Manager struct {
	Auth        *AuthMiddleware
	Idempotency *IdempotencyMiddleware // nil when Redis is disabled
	ErrorLogger *ErrorLoggerMiddleware
	RedisClient redis.UniversalClient
	Logger      *logrus.Logger
}

// NewManager creates the middleware set. Redis is only dialed when enabled.
func NewManager(cfg *config.Config, gate *auth.Gate, logger *logrus.Logger) (*Manager, error) {
	m := &Manager{
		Auth:        NewAuthMiddleware(gate, logger),
		ErrorLogger: NewErrorLoggerMiddleware(logger),
		Logger:      logger,
	}

	if cfg.Redis.Enabled {
		client, err := NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}
		m.RedisClient = client
		m.Idempotency = NewIdempotencyMiddleware(client, cfg.Idempotency.TTL, logger)
	} else {
		logger.Info("Redis disabled, Idempotency-Key headers are ignored")
	}

	return m, nil
}

// IdempotencyHandler returns the idempotency middleware or a pass-through
func (m *Manager) IdempotencyHandler() fiber.Handler {
	if m.Idempotency == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return m.Idempotency.Handle()
}

// RedisProbe returns nil when Redis is disabled
func (m *Manager) RedisProbe() func(context.Context) error {
	if m.RedisClient == nil {
		return nil
	}
	return RedisHealthCheck(m.RedisClient)
}

// IdempotencyBreakerState reports the idempotency store's breaker state, or
// nil when Redis is disabled
func (m *Manager) IdempotencyBreakerState() func() string {
	if m.Idempotency == nil {
		return nil
	}
	return func() string { return m.Idempotency.BreakerState().String() }
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}
