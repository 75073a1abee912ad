package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more request from identifier fits its budget
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// RedisLimiter is a sliding-window limiter backed by a Redis sorted set
type RedisLimiter struct {
	redis       *redis.Client
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter creates a new Redis sliding-window limiter
func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		redis:       client,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow records the request and reports whether it is within the window's budget
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := "ratelimit:" + identifier
	now := time.Now()
	windowStart := now.Add(-l.window).UnixNano()

	pipe := l.redis.Pipeline()

	// Drop entries that slid out of the window
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}

	return countCmd.Val() < int64(l.maxRequests), nil
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	limiter Limiter
	enabled bool
	logger  *zap.SugaredLogger
}

// NewRateLimiter creates a new rate limiter. With a nil limiter or enabled
// false every request passes.
func NewRateLimiter(limiter Limiter, enabled bool, logger *zap.SugaredLogger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RateLimiter{
		limiter: limiter,
		enabled: enabled && limiter != nil,
		logger:  logger,
	}
}

// Limit returns a middleware that rate limits requests
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		identifier := rl.getIdentifier(r)

		allowed, err := rl.limiter.Allow(r.Context(), identifier)
		if err != nil {
			// Fail open: a Redis outage must not take browsing down
			rl.logger.Warnw("Rate limit check failed", "identifier", identifier, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"Too many requests. Please try again later."}`)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getIdentifier returns the session ID when present, the client IP otherwise
func (rl *RateLimiter) getIdentifier(r *http.Request) string {
	if sessionID, ok := SessionIDFromContext(r.Context()); ok {
		return "session:" + sessionID
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return "ip:" + ip
}
