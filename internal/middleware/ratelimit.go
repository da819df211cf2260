package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/metrics"
	"github.com/lessonforge/api/pkg/response"
)

type RateLimiter struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: log.WithComponent("ratelimit")}
}

// Limit allows maxRequests per user within a fixed window. Requests without
// a user are passed through; Redis failures fail open.
func (rl *RateLimiter) Limit(scope string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", scope, userID)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			metrics.RecordRateLimited(scope)
			return response.RateLimited(c, int(ttl.Seconds()))
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		return c.Next()
	}
}

// ValidateLimit limits manifest validation and analysis per minute.
func (rl *RateLimiter) ValidateLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("validate", maxPerMin, time.Minute)
}

// GenerateLimit limits generation submissions per hour.
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}

func (rl *RateLimiter) ReportsLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("reports", maxPerMin, time.Minute)
}
