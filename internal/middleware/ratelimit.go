// ratelimit.go provides the coarse per-IP edge limiter that runs in front of
// the application-level admission checks. It uses Redis GCRA so the limit
// holds across replicas, and fails open when Redis is unreachable: shedding
// abusive traffic is worth degrading, refusing all traffic is not.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/openboard/openboard/internal/config"
)

// EdgeRateLimiter wraps the shared Redis limiter used by the edge middleware.
type EdgeRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	logger  *slog.Logger

	// rdb is set only when NewEdgeRateLimiter created the client itself;
	// Close() owns its lifecycle in that case.
	rdb *redis.Client
}

// Close releases the Redis client, when this limiter owns one.
func (e *EdgeRateLimiter) Close() error {
	if e == nil || e.rdb == nil {
		return nil
	}
	return e.rdb.Close()
}

// NewEdgeRateLimiter connects to Redis and builds the limiter from config.
// Returns nil when the edge limiter is disabled.
func NewEdgeRateLimiter(cfg *config.EdgeConfig, logger *slog.Logger) *EdgeRateLimiter {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	limit := redis_rate.Limit{
		Rate:   cfg.RequestsPerMinute,
		Burst:  cfg.Burst,
		Period: time.Minute,
	}
	if limit.Burst < 1 {
		limit.Burst = limit.Rate
	}

	return &EdgeRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   limit,
		logger:  logger,
		rdb:     rdb,
	}
}

// NewEdgeRateLimiterWithClient builds a limiter on an existing Redis client.
// Used by tests and by callers that manage the client lifecycle themselves.
func NewEdgeRateLimiterWithClient(rdb *redis.Client, limit redis_rate.Limit, logger *slog.Logger) *EdgeRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgeRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   limit,
		logger:  logger,
	}
}

// EdgeRateLimitMiddleware enforces the per-IP limit. A nil limiter (edge
// limiting disabled) yields a pass-through handler.
func EdgeRateLimitMiddleware(e *EdgeRateLimiter) gin.HandlerFunc {
	if e == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := "edge:" + clientKey(c)

		res, err := e.limiter.Allow(c.Request.Context(), key, e.limit)
		if err != nil {
			// Redis down: let the request through, the per-user admission
			// checks further in still apply.
			e.logger.Warn("edge rate limiter unavailable, failing open", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(e.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// clientKey identifies the client for edge limiting. The edge limiter runs
// before authentication, so the key is always the client IP; per-user limits
// are the admission middleware's job.
func clientKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
