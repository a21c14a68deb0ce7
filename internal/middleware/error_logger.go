package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/logging"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

type ErrorLoggerMiddleware struct {
	logger *logrus.Logger
}

func NewErrorLoggerMiddleware(logger *logrus.Logger) *ErrorLoggerMiddleware {
	return &ErrorLoggerMiddleware{
		logger: logger,
	}
}

// Handle renders errors returned further down the chain and logs 4xx and
// 5xx responses. Request bodies are never logged since they carry
// passwords and image data.
func (e *ErrorLoggerMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		statusCode := c.Response().StatusCode()
		if statusCode < 400 {
			return nil
		}

		latencyMs := float64(time.Since(startTime).Microseconds()) / 1000
		logEntry := logging.WithRequest(e.logger, c.Method(), c.Path(), statusCode, latencyMs).WithFields(logrus.Fields{
			"ip":         c.IP(),
			"user_agent": c.Get(fiber.HeaderUserAgent),
			"request_id": RequestID(c),
		})

		if traceID := TraceID(c.UserContext()); traceID != "" {
			logEntry = logging.WithTraceID(logEntry, traceID)
		}

		if userID := GetUserID(c); userID != "" {
			logEntry = logging.WithUserID(logEntry, userID)
		}

		if idempotencyKey := c.Get(HeaderIdempotencyKey); idempotencyKey != "" {
			logEntry = logEntry.WithField("idempotency_key", idempotencyKey)
		}

		var appErr *apperrors.AppError
		if errors.As(chainErr, &appErr) {
			logEntry = logEntry.WithField("error_code", appErr.Code)
		}

		if statusCode >= 500 {
			if chainErr != nil {
				logEntry = logEntry.WithError(chainErr)
			}
			logEntry.Error("Server error response")
		} else {
			logEntry.Warn("Client error response")
		}

		return nil
	}
}

// retryAfterSeconds is advertised on retryable failures that did not set
// their own Retry-After.
const retryAfterSeconds = 5

// ErrorHandler writes every error as the JSON error envelope. Causes stay
// in the logs.
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := toAppError(err)

		traceID := TraceID(c.UserContext())
		if traceID == "" {
			traceID = RequestID(c)
		}

		if appErr.HTTPStatus() >= fiber.StatusInternalServerError {
			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"code":   appErr.Code,
			}).Debug("Request failed")
		}

		if appErr.IsRetryable() && c.GetRespHeader(fiber.HeaderRetryAfter) == "" {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds))
		}

		return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(traceID))
	}
}

func toAppError(err error) *apperrors.AppError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			return apperrors.NotFound("The requested resource was not found")
		case fiber.StatusMethodNotAllowed:
			return apperrors.NewAppError(apperrors.CodeNotFound, "The requested resource was not found", err)
		case fiber.StatusRequestEntityTooLarge:
			return apperrors.NewAppError(apperrors.CodePayloadTooLarge, "Request body is too large", err)
		case fiber.StatusUnsupportedMediaType, fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			return apperrors.NewAppError(apperrors.CodeValidation, "Invalid request body", err)
		case fiber.StatusTooManyRequests:
			return apperrors.NewAppError(apperrors.CodeRateLimited, "Rate limit exceeded. Please try again later.", err)
		}
	}
	return apperrors.As(err)
}

// RequestID returns the id assigned by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
