package middleware

import (
	"bytes"
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

	"github.com/wallshare/wallpaper-api/internal/metrics"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyMiddleware replays the first successful response for a repeated
// Idempotency-Key. Requests without the header pass straight through.
type IdempotencyMiddleware struct {
	redisClient redis.UniversalClient
	logger      *logrus.Logger
	ttl         time.Duration
}

type IdempotencyRecord struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

func NewIdempotencyMiddleware(redisClient redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IdempotencyMiddleware{
		redisClient: redisClient,
		logger:      logger,
		ttl:         ttl,
	}
}

// Handle must run after the authorization gate so keys are scoped per user.
func (i *IdempotencyMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idempotencyKey := c.Get(HeaderIdempotencyKey)
		if idempotencyKey == "" || i.redisClient == nil {
			return c.Next()
		}

		if _, err := uuid.Parse(idempotencyKey); err != nil {
			return apperrors.Validation("Idempotency-Key must be a valid UUID")
		}

		ctx := c.UserContext()
		redisKey := fmt.Sprintf("idempotency:%s:%s", GetUserID(c), idempotencyKey)
		fingerprint := i.generateFingerprint(c)

		existing, err := i.getIdempotencyRecord(ctx, redisKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			i.logger.WithError(err).Error("Failed to get idempotency record")
			// Continue with request rather than failing
			return c.Next()
		}

		if existing != nil {
			storedFingerprint, err := i.redisClient.Get(ctx, redisKey+":fingerprint").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				i.logger.WithError(err).Error("Failed to get fingerprint")
			}
			if storedFingerprint != "" && storedFingerprint != fingerprint {
				metrics.RecordIdempotencyHit("conflict")
				return apperrors.NewAppError(apperrors.CodeIdempotencyConflict, "Request differs from the original request with the same Idempotency-Key", nil)
			}

			metrics.RecordIdempotencyHit("hit")
			return i.returnCachedResponse(c, existing)
		}

		// The fingerprint doubles as an in-flight marker.
		acquired, err := i.redisClient.SetNX(ctx, redisKey+":fingerprint", fingerprint, i.ttl).Result()
		if err != nil {
			i.logger.WithError(err).Error("Failed to store fingerprint")
			return c.Next()
		}
		if !acquired {
			metrics.RecordIdempotencyHit("conflict")
			return apperrors.NewAppError(apperrors.CodeIdempotencyConflict, "A request with this Idempotency-Key is already being processed", nil)
		}
		metrics.RecordIdempotencyHit("miss")

		chainErr := c.Next()

		statusCode := c.Response().StatusCode()
		if chainErr != nil || statusCode < 200 || statusCode >= 300 {
			// Allow the client to retry a failed request with the same key
			if err := i.redisClient.Del(context.WithoutCancel(ctx), redisKey+":fingerprint").Err(); err != nil {
				i.logger.WithError(err).Warn("Failed to release idempotency key")
			}
			return chainErr
		}

		record := IdempotencyRecord{
			StatusCode: statusCode,
			Headers:    make(map[string]string),
			Body:       string(c.Response().Body()),
			CreatedAt:  time.Now(),
		}
		c.Response().Header.VisitAll(func(key, value []byte) {
			if shouldCacheHeader(string(key)) {
				record.Headers[string(key)] = string(value)
			}
		})

		if err := i.storeIdempotencyRecord(context.WithoutCancel(ctx), redisKey, &record); err != nil {
			i.logger.WithError(err).WithField("idempotency_key", idempotencyKey).Error("Failed to store idempotency record")
		} else {
			i.logger.WithFields(logrus.Fields{
				"idempotency_key": idempotencyKey,
				"status_code":     statusCode,
			}).Debug("Stored idempotency record")
		}

		return nil
	}
}

// generateFingerprint hashes what makes two requests "the same"
func (i *IdempotencyMiddleware) generateFingerprint(c *fiber.Ctx) string {
	h := sha256.New()

	h.Write([]byte(c.Method()))
	h.Write([]byte(":"))
	h.Write([]byte(c.Path()))
	h.Write([]byte(":"))
	h.Write(c.Request().URI().QueryString())
	h.Write([]byte(":"))
	h.Write(fingerprintBody(c))
	h.Write([]byte(":"))
	h.Write([]byte(GetUserID(c)))

	return hex.EncodeToString(h.Sum(nil))
}

// fingerprintBody drops the multipart boundary, which clients pick at random
// for every attempt.
func fingerprintBody(c *fiber.Ctx) []byte {
	body := c.Body()
	if boundary := c.Request().Header.MultipartFormBoundary(); len(boundary) > 0 {
		return bytes.ReplaceAll(body, boundary, nil)
	}
	return body
}

func (i *IdempotencyMiddleware) getIdempotencyRecord(ctx context.Context, key string) (*IdempotencyRecord, error) {
	data, err := i.redisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}

	return &record, nil
}

func (i *IdempotencyMiddleware) storeIdempotencyRecord(ctx context.Context, key string, record *IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	return i.redisClient.Set(ctx, key, data, i.ttl).Err()
}

func (i *IdempotencyMiddleware) returnCachedResponse(c *fiber.Ctx, record *IdempotencyRecord) error {
	for key, value := range record.Headers {
		c.Set(key, value)
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
