package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/logging"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

type ErrorLoggerMiddleware struct {
	logger *logrus.Logger
}

func NewErrorLoggerMiddleware(logger *logrus.Logger) *ErrorLoggerMiddleware {
	return &ErrorLoggerMiddleware{
		logger: logger,
	}
}

// Handle logs 4xx and 5xx responses. Request bodies are never logged since
// they carry passwords.
func (e *ErrorLoggerMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		err := c.Next()
		if err != nil {
			// render now so the logged status is the one the client sees
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		statusCode := c.Response().StatusCode()
		if statusCode < 400 {
			return nil
		}

		latencyMs := float64(time.Since(startTime).Microseconds()) / 1000
		logFields := logrus.Fields{
			"ip":         c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
			"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
		}
		if userID := GetUserID(c); userID != "" {
			logFields["user_id"] = userID
		}
		if appErr, ok := apperrors.As(err); ok {
			logFields["code"] = appErr.Code
			if appErr.Reason != "" {
				logFields["reason"] = appErr.Reason
			}
		}

		logEntry := logging.WithRequest(e.logger, c.Method(), c.Path(), statusCode, latencyMs).WithFields(logFields)
		if statusCode >= 500 {
			if err != nil {
				logEntry = logEntry.WithError(err)
			}
			logEntry.Error("Server error response")
		} else {
			logEntry.Warn("Client error response")
		}

		return nil
	}
}
