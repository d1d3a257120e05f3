// Package ratelimit implements rate limiting backed by Redis or local memory.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/logging"
)

// RateLimiter holds the limiter instances for the HTTP API and the WebSocket
// upgrade endpoint.
type RateLimiter struct {
	api   *limiter.Limiter
	wsIP  *limiter.Limiter
	store limiter.Store
}

// New creates a RateLimiter. With a nil redis client it falls back to an
// in-process memory store.
func New(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPI)
	if err != nil {
		return nil, fmt.Errorf("invalid API rate: %w", err)
	}
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store")
	}

	return &RateLimiter{
		api:   limiter.New(store, apiRate),
		wsIP:  limiter.New(store, wsIPRate),
		store: store,
	}, nil
}

// APIMiddleware enforces the per-client API limit, keyed by IP. The store
// failing open keeps the API available while redis is down.
func (rl *RateLimiter) APIMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lctx, err := rl.api.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			logging.Error(c.Request.Context(), "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}
		c.Next()
	}
}

// CheckWebSocket enforces the per-IP upgrade limit. On rejection the response
// is already written and the caller must return.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	lctx, err := rl.wsIP.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		logging.Error(c.Request.Context(), "rate limiter store failed", zap.Error(err))
		return true
	}

	if lctx.Reached {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many connection attempts",
		})
		return false
	}
	return true
}
