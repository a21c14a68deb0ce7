package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/auth"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const bearerPrefix = "Bearer "

var (
	errMissingHeader = errors.New("authorization header is missing")
	errNotBearer     = errors.New("authorization header is not a bearer token")
)

type AuthMiddleware struct {
	tokens *auth.TokenManager
	logger *logrus.Logger
}

func NewAuthMiddleware(tokens *auth.TokenManager, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// Authenticate rejects the request with 401 unless it carries a valid
// bearer token. It runs before the handler reads the body.
func (a *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := a.verify(c)
		if err != nil {
			metrics.RecordAuthEvent("token", false)
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Token validation failed")

			message := "Invalid or expired token"
			if errors.Is(err, errMissingHeader) {
				message = "Authorization header is required"
			}
			return apperrors.Unauthenticated(message, err)
		}

		bind(c, claims)
		return c.Next()
	}
}

// Optional binds the caller's identity when a valid token is present and
// otherwise lets the request through anonymously.
func (a *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}

		claims, err := a.verify(c)
		if err != nil {
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Ignoring invalid token on optional route")
			return c.Next()
		}

		bind(c, claims)
		return c.Next()
	}
}

func (a *AuthMiddleware) verify(c *fiber.Ctx) (*auth.Claims, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, errMissingHeader
	}

	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, errNotBearer
	}

	return a.tokens.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
}

func bind(c *fiber.Ctx, claims *auth.Claims) {
	c.Locals("user_claims", claims)
	c.Locals("user_id", claims.UserID)
	c.Locals("username", claims.Username)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}

func GetUsername(c *fiber.Ctx) string {
	if username, ok := c.Locals("username").(string); ok {
		return username
	}
	return ""
}

// GetUserClaims extracts user claims from context
func GetUserClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals("user_claims").(*auth.Claims); ok {
		return claims
	}
	return nil
}
