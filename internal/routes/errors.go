package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/traffic-tacos/user-auth-api/internal/logging"
	apperrors "github.com/traffic-tacos/user-auth-api/pkg/errors"
)

const msgInternal = "Internal server error"

// ErrorHandler is the only place errors become HTTP responses. Internal
// failures are logged with their cause and rendered with a fixed message.
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr, ok := apperrors.As(err)
		if !ok {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				appErr = fromFiberError(fe)
			} else {
				appErr = apperrors.Internal(msgInternal, err)
			}
		}

		tid := traceID(c)
		if appErr.Code == apperrors.CodeInternalError {
			logging.WithTraceID(logger, tid).WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("Request failed")
			appErr = apperrors.Internal(msgInternal, appErr.Cause)
		}

		status := appErr.HTTPStatus()
		if status == fiber.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		return c.Status(status).JSON(appErr.ToErrorResponse(tid))
	}
}

func fromFiberError(fe *fiber.Error) *apperrors.AppError {
	switch {
	case fe.Code == fiber.StatusNotFound:
		return apperrors.NotFound("The requested resource was not found")
	case fe.Code >= 400 && fe.Code < 500:
		return apperrors.BadRequest(fe.Message)
	default:
		return apperrors.Internal(msgInternal, fe)
	}
}

// traceID prefers the active span's trace ID and falls back to the request ID
func traceID(c *fiber.Ctx) string {
	if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
