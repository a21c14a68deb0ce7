package middleware

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/auth"
	"github.com/wallshare/wallpaper-api/internal/config"
)

// Manager holds all middleware instances
type Manager struct {
	Auth        *AuthMiddleware
	Idempotency *IdempotencyMiddleware
	RateLimit   *RateLimitMiddleware
	ErrorLogger *ErrorLoggerMiddleware
	RedisClient redis.UniversalClient // nil when Redis is disabled
	Config      *config.Config
	Logger      *logrus.Logger
}

// NewManager connects to Redis when enabled and builds every middleware.
func NewManager(cfg *config.Config, tokens *auth.TokenManager, logger *logrus.Logger) (*Manager, error) {
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := NewRedisClient(&cfg.Redis, &cfg.AWS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}
		redisClient = client
	} else {
		logger.Warn("Redis is disabled, rate limiting and idempotency are off")
	}

	return NewManagerWithRedis(cfg, tokens, redisClient, logger), nil
}

// NewManagerWithRedis builds the middleware around an existing client,
// which may be nil.
func NewManagerWithRedis(cfg *config.Config, tokens *auth.TokenManager, redisClient redis.UniversalClient, logger *logrus.Logger) *Manager {
	return &Manager{
		Auth:        NewAuthMiddleware(tokens, logger),
		Idempotency: NewIdempotencyMiddleware(redisClient, cfg.Idempotency.TTL, logger),
		RateLimit:   NewRateLimitMiddleware(&cfg.RateLimit, redisClient, logger),
		ErrorLogger: NewErrorLoggerMiddleware(logger),
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}
