package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/config"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

// Token bucket. Tokens are kept fractional so frequent callers still refill.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call("HMGET", key, "tokens", "last_refill")
local current_tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or 0

local now = redis.call("TIME")
local now_ms = now[1] * 1000 + math.floor(now[2] / 1000)

if last_refill > 0 and now_ms > last_refill then
    local elapsed = now_ms - last_refill
    current_tokens = math.min(capacity, current_tokens + (elapsed / interval_ms) * rate)
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call("HSET", key, "tokens", tostring(current_tokens), "last_refill", now_ms)
redis.call("EXPIRE", key, 3600)

return {allowed, math.floor(current_tokens), capacity}`)

// Bucket is one rate limit policy.
type Bucket struct {
	Name  string // key prefix and metric label
	Rate  int    // tokens per window
	Burst int
}

type RateLimitMiddleware struct {
	config      *config.RateLimitConfig
	redisClient redis.UniversalClient
	logger      *logrus.Logger
}

func NewRateLimitMiddleware(cfg *config.RateLimitConfig, redisClient redis.UniversalClient, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Handle applies the general per-client bucket
func (r *RateLimitMiddleware) Handle() fiber.Handler {
	return r.Limit(Bucket{Name: "ip", Rate: r.config.RPS, Burst: r.config.Burst})
}

// HandleAuth applies the stricter bucket for credential endpoints
func (r *RateLimitMiddleware) HandleAuth() fiber.Handler {
	return r.Limit(Bucket{Name: "auth", Rate: r.config.AuthRPS, Burst: r.config.AuthBurst})
}

func (r *RateLimitMiddleware) Limit(bucket Bucket) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.config.Enabled || r.redisClient == nil {
			return c.Next()
		}

		path := c.Path()
		for _, exemptPath := range r.config.ExemptPaths {
			if exemptPath != "" && strings.HasPrefix(path, exemptPath) {
				return c.Next()
			}
		}

		key := r.generateKey(c, bucket.Name)

		allowed, remaining, err := r.checkRateLimit(c.UserContext(), key, bucket)
		if err != nil {
			r.logger.WithError(err).Error("Rate limit check failed")
			// Allow request on Redis failure to avoid blocking traffic
			return c.Next()
		}

		r.setRateLimitHeaders(c, bucket, remaining, allowed)

		if !allowed {
			metrics.RecordRateLimitDrop(bucket.Name)
			r.logger.WithFields(logrus.Fields{
				"key":    key,
				"path":   path,
				"method": c.Method(),
			}).Warn("Rate limit exceeded")

			return apperrors.NewAppError(apperrors.CodeRateLimited, "Rate limit exceeded. Please try again later.", nil)
		}

		return c.Next()
	}
}

// generateKey uses the user when already authenticated, the client IP
// otherwise. c.IP honours SERVER_PROXY_HEADER when one is configured.
func (r *RateLimitMiddleware) generateKey(c *fiber.Ctx, bucket string) string {
	if userID := GetUserID(c); userID != "" {
		return fmt.Sprintf("ratelimit:%s:user:%s", bucket, userID)
	}
	return fmt.Sprintf("ratelimit:%s:ip:%s", bucket, c.IP())
}

func (r *RateLimitMiddleware) checkRateLimit(ctx context.Context, key string, bucket Bucket) (bool, int, error) {
	intervalMs := r.config.WindowSize.Milliseconds()
	if intervalMs <= 0 {
		intervalMs = 1000
	}

	result, err := tokenBucketScript.Run(ctx, r.redisClient, []string{key}, bucket.Burst, bucket.Rate, intervalMs, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 3 {
		return false, 0, fmt.Errorf("unexpected script result format")
	}

	allowedInt, ok := resultSlice[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("failed to parse allowed result")
	}

	remainingInt, ok := resultSlice[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("failed to parse remaining result")
	}

	return allowedInt == 1, int(remainingInt), nil
}

func (r *RateLimitMiddleware) setRateLimitHeaders(c *fiber.Ctx, bucket Bucket, remaining int, allowed bool) {
	resetTime := time.Now().Add(r.config.WindowSize)

	c.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Rate))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

	if !allowed {
		retryAfter := int(r.config.WindowSize.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	}
}
