package routes

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/blob"
	"github.com/wallshare/wallpaper-api/internal/config"
	"github.com/wallshare/wallpaper-api/internal/logging"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/service"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const (
	serviceName     = "wallpaper-api"
	readinessBudget = 2 * time.Second
)

// ReadinessCheck probes one dependency. A non-nil error makes /readyz fail.
type ReadinessCheck func(context.Context) error

// Dependencies is everything the HTTP surface needs
type Dependencies struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Middleware *middleware.Manager
	Auth       *service.AuthService
	Gallery    *service.GalleryService

	// ReadinessChecks are run by /readyz, keyed by dependency name
	ReadinessChecks map[string]ReadinessCheck
	// Breaker, when set, is reported by /readyz. An open breaker does not
	// make the service unready.
	Breaker *blob.CircuitBreaker
}

// Setup configures all API routes
func Setup(app *fiber.App, deps Dependencies) {
	m := deps.Middleware

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	wallpaperHandler := NewWallpaperHandler(deps.Gallery, deps.Logger)
	favoriteHandler := NewFavoriteHandler(deps.Gallery, deps.Logger)

	// Metrics sit outside the error logger so they see the rendered status
	app.Use(metrics.HTTPMetricsMiddleware())
	app.Use(m.ErrorLogger.Handle())
	app.Use(m.RateLimit.Handle())

	// Health check endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(deps))
	app.Get("/version", versionHandler)

	metricsPath := "/metrics"
	if deps.Config != nil && deps.Config.Observability.MetricsPath != "" {
		metricsPath = deps.Config.Observability.MetricsPath
	}
	app.Get(metricsPath, metrics.PrometheusHandler())

	app.Get("/swagger/*", swagger.HandlerDefault)

	// Public auth endpoints share a stricter bucket
	app.Post("/register", m.RateLimit.HandleAuth(), authHandler.Register)
	app.Post("/login", m.RateLimit.HandleAuth(), authHandler.Login)

	// Shared gallery, personalised when a valid token is sent
	app.Get("/wallpapers", m.Auth.Optional(), wallpaperHandler.ListAll)

	// Protected routes
	authenticate := m.Auth.Authenticate()

	app.Post("/upload", authenticate, m.Idempotency.Handle(), wallpaperHandler.Upload)
	app.Get("/my-wallpapers", authenticate, wallpaperHandler.ListMine)
	app.Delete("/wallpaper", authenticate, wallpaperHandler.Delete)

	favorites := app.Group("/favorites", authenticate)
	favorites.Get("", favoriteHandler.List)
	favorites.Post("", favoriteHandler.Add)
	favorites.Delete("", favoriteHandler.Remove)

	// 404 handler
	app.Use(notFoundHandler)
}

// healthCheck returns the health status of the service
// @Summary Health check
// @Description Check if the service is healthy
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Router /healthz [get]
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}

// readinessCheck checks if the service is ready to accept traffic
// @Summary Readiness check
// @Description Check store and cache connectivity
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Ready"
// @Failure 503 {object} map[string]interface{} "Not ready"
// @Router /readyz [get]
func readinessCheck(deps Dependencies) fiber.Handler {
	names := make([]string, 0, len(deps.ReadinessChecks))
	for name := range deps.ReadinessChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessBudget)
		defer cancel()

		checks := fiber.Map{}
		ready := true
		for _, name := range names {
			if err := deps.ReadinessChecks[name](ctx); err != nil {
				ready = false
				checks[name] = err.Error()
				deps.Logger.WithError(err).WithField("dependency", name).Warn("Readiness check failed")
				continue
			}
			checks[name] = "ok"
		}

		body := fiber.Map{
			"status":    "ready",
			"checks":    checks,
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		}
		if deps.Breaker != nil {
			body["blob_breaker"] = deps.Breaker.Stats()
		}

		if !ready {
			body["status"] = "not ready"
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		return c.JSON(body)
	}
}

// versionHandler returns version information
// @Summary Version information
// @Description Get service version
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Version info"
// @Router /version [get]
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": serviceName,
		"version": logging.Version(),
	})
}

func notFoundHandler(c *fiber.Ctx) error {
	return apperrors.NotFound("The requested resource was not found")
}
