package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	_ "github.com/wallshare/wallpaper-api/docs" // Swagger docs
	"github.com/wallshare/wallpaper-api/internal/auth"
	"github.com/wallshare/wallpaper-api/internal/blob"
	"github.com/wallshare/wallpaper-api/internal/config"
	"github.com/wallshare/wallpaper-api/internal/logging"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/routes"
	"github.com/wallshare/wallpaper-api/internal/service"
	"github.com/wallshare/wallpaper-api/internal/store"
	"github.com/wallshare/wallpaper-api/internal/store/dynamo"
	"github.com/wallshare/wallpaper-api/internal/store/memory"
	"github.com/wallshare/wallpaper-api/internal/store/postgres"
)

// @title Wallpaper API
// @version 1.0
// @description Wallpaper sharing service: accounts, uploads, gallery and favorites

// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logging.New(cfg)

	// Initialize metrics
	if err := metrics.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}

	ctx := context.Background()

	// Initialize OTLP metrics exporter
	if cfg.Observability.OTLPEndpoint != "" {
		metricsShutdown, err := metrics.InitOTLP(ctx, cfg.Observability.OTLPEndpoint, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize OTLP metrics exporter, continuing with Prometheus only")
		} else {
			defer shutdownWith(logger, "OTLP metrics exporter", metricsShutdown)
		}
	}

	// Initialize tracing
	tracingShutdown, err := middleware.InitTracing(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to setup tracing")
	}
	defer shutdownWith(logger, "tracing", tracingShutdown)

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token manager")
	}
	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize password hasher")
	}

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize stores")
	}
	defer stores.close()

	// Blob storage behind a circuit breaker
	s3Client, err := blob.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize S3 client")
	}
	breaker := blob.NewCircuitBreaker(blob.BreakerConfig{
		Name:         "blob",
		MaxFailures:  cfg.Upload.BreakerMaxFailures,
		ResetTimeout: cfg.Upload.BreakerResetTimeout,
	}, logger)
	uploader := blob.NewBreakerUploader(blob.NewS3Uploader(s3Client, &cfg.S3, logger), breaker)

	authService, err := service.NewAuthService(stores.credentials, hasher, tokens, cfg.Store.Timeout, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize auth service")
	}
	galleryService := service.NewGalleryService(stores.resources, uploader, service.GalleryConfig{
		StoreTimeout:   cfg.Store.Timeout,
		UploadTimeout:  cfg.Upload.Timeout,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		KeyPrefix:      cfg.S3.KeyPrefix,
	}, logger)

	// Initialize middleware manager
	middlewareManager, err := middleware.NewManager(cfg, tokens, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize middleware manager")
	}
	defer middlewareManager.Close()

	if middlewareManager.RedisClient != nil {
		stores.checks["redis"] = middleware.RedisHealthCheck(middlewareManager.RedisClient, logger)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Wallpaper API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		ProxyHeader:  cfg.Server.ProxyHeader,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowMethods: "GET,POST,HEAD,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Idempotency-Key",
		MaxAge:       86400,
	}))
	// OTEL use
	app.Use(otelfiber.Middleware())

	if cfg.Server.Environment != "production" {
		// pprof for memory profiling (accessible at /debug/pprof/)
		app.Use(pprof.New())
	}

	// Setup routes
	routes.Setup(app, routes.Dependencies{
		Config:          cfg,
		Logger:          logger,
		Middleware:      middlewareManager,
		Auth:            authService,
		Gallery:         galleryService,
		ReadinessChecks: stores.checks,
		Breaker:         breaker,
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.WithFields(logrus.Fields{
		"port":                cfg.Server.Port,
		"store_backend":       cfg.Store.Backend,
		"credentials_backend": cfg.Store.CredentialsBackend,
	}).Info("Starting Wallpaper API server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}

type storeSet struct {
	credentials store.CredentialStore
	resources   store.ResourceStore
	checks      map[string]routes.ReadinessCheck
	closers     []func() error
}

func (s *storeSet) close() {
	for _, closeFn := range s.closers {
		_ = closeFn()
	}
}

// openStores picks the resource store and, independently, the credential
// store. config.Load has already rejected unsupported combinations.
func openStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*storeSet, error) {
	set := &storeSet{checks: make(map[string]routes.ReadinessCheck)}

	var mem *memory.Store
	var pg *postgres.Store

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		opened, db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		pg = opened
		set.resources = pg
		set.checks["postgres"] = pg.Ping
		set.closers = append(set.closers, db.Close)
		logger.WithField("migrate", cfg.Database.Migrate).Info("Postgres store initialized")

	case config.BackendMemory:
		mem = memory.New()
		set.resources = mem
		logger.Warn("Using in-memory store, data is lost on restart")
	}

	switch cfg.Store.CredentialsBackend {
	case config.BackendPostgres:
		set.credentials = pg

	case config.BackendMemory:
		if mem == nil {
			mem = memory.New()
		}
		set.credentials = mem

	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, &cfg.DynamoDB, &cfg.AWS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DynamoDB client: %w", err)
		}
		users := dynamo.NewCredentialStore(client, cfg.DynamoDB.UsersTableName)
		set.credentials = users
		set.checks["dynamodb"] = users.Ping
	}

	return set, nil
}

func shutdownWith(logger *logrus.Logger, name string, shutdown func(context.Context) error) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Errorf("Failed to shutdown %s", name)
	}
}
