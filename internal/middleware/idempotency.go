package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

const idempotencyHeader = "Idempotency-Key"

// IdempotencyMiddleware replays the stored response when a client retries a
// state-changing request with the same Idempotency-Key. Requests without the
// header pass through untouched.
type IdempotencyMiddleware struct {
	client  redis.UniversalClient
	breaker *CircuitBreaker
	logger  *logrus.Logger
	ttl     time.Duration
}

type IdempotencyRecord struct {
	Fingerprint string            `json:"fingerprint"`
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	CreatedAt   time.Time         `json:"created_at"`
}

func NewIdempotencyMiddleware(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		client:  client,
		breaker: NewCircuitBreaker("idempotency", logger),
		logger:  logger,
		ttl:     ttl,
	}
}

// Handle serves cached responses and records successful new ones. Store
// failures never fail the request.
func (i *IdempotencyMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(idempotencyHeader)
		if key == "" {
			return c.Next()
		}
		if _, err := uuid.Parse(key); err != nil {
			return apperrors.BadRequest("Idempotency-Key must be a valid UUID")
		}

		ctx := c.UserContext()
		redisKey := "idempotency:" + key
		fingerprint := i.fingerprint(c)

		existing, err := i.load(ctx, redisKey)
		switch {
		case err != nil:
			metrics.RecordIdempotencyHit("error")
			i.logger.WithError(err).WithField("idempotency_key", key).Warn("Idempotency lookup failed, processing request")
		case existing != nil:
			if existing.Fingerprint != fingerprint {
				metrics.RecordIdempotencyHit("conflict")
				return apperrors.NewAppError(apperrors.CodeIdempotencyConflict,
					"Request differs from the original request with the same Idempotency-Key", nil)
			}
			metrics.RecordIdempotencyHit("hit")
			return replay(c, existing)
		default:
			metrics.RecordIdempotencyHit("miss")
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}

		record := &IdempotencyRecord{
			Fingerprint: fingerprint,
			StatusCode:  status,
			Headers:     make(map[string]string),
			Body:        string(c.Response().Body()),
			CreatedAt:   time.Now().UTC(),
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			if shouldCacheHeader(string(k)) {
				record.Headers[string(k)] = string(v)
			}
		})

		if err := i.store(ctx, redisKey, record); err != nil {
			i.logger.WithError(err).WithField("idempotency_key", key).Warn("Failed to store idempotency record")
		}
		return nil
	}
}

// fingerprint hashes the parts of the request that must match on replay.
// Only the digest is stored, never the body itself.
func (i *IdempotencyMiddleware) fingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte(":"))
	h.Write([]byte(c.Path()))
	h.Write([]byte(":"))
	h.Write(c.Request().URI().QueryString())
	h.Write([]byte(":"))
	h.Write(c.Body())
	return hex.EncodeToString(h.Sum(nil))
}

// load returns nil, nil when no record exists
func (i *IdempotencyMiddleware) load(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var data string
	err := i.breaker.Execute(func() error {
		var err error
		data, err = i.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}

	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &record, nil
}

func (i *IdempotencyMiddleware) store(ctx context.Context, key string, record *IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	return i.breaker.Execute(func() error {
		return i.client.Set(ctx, key, data, i.ttl).Err()
	})
}

// BreakerState reports the store's circuit breaker state
func (i *IdempotencyMiddleware) BreakerState() CircuitBreakerState {
	return i.breaker.State()
}

func replay(c *fiber.Ctx, record *IdempotencyRecord) error {
	for k, v := range record.Headers {
		c.Set(k, v)
	}
	c.Set("X-Idempotency-Cached", "true")
	return c.Status(record.StatusCode).SendString(record.Body)
}

func shouldCacheHeader(header string) bool {
	switch strings.ToLower(header) {
	case "content-type", "location":
		return true
	}
	return false
}
