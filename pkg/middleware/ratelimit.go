package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitStrategy selects how clients are identified.
type RateLimitStrategy string

const (
	// StrategyIP keys on the client IP published by ClientIP.
	StrategyIP RateLimitStrategy = "ip"
	// StrategyUser keys on the authenticated user, falling back to the IP.
	StrategyUser RateLimitStrategy = "user"
	// StrategyCustom keys on KeyExtractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// If multiple routes share the same BucketName, they share the same rate limit
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	Strategy RateLimitStrategy

	// Custom key extractor, used when Strategy is StrategyCustom
	KeyExtractor func(inv *pipeline.Invocation) (string, error)

	// UserKey turns the published user into a key for StrategyUser.
	// Defaults to fmt.Sprint of the user.
	UserKey func(user any) string

	Logger *zap.Logger
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow reports whether a request for key is allowed, the number of
	// remaining requests and the time until the next request is allowed.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// TokenBucketLimiter implements RateLimiter with one token bucket per key.
// A bucket holds limit tokens and refills at limit per window.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewTokenBucketLimiter creates an empty limiter.
func NewTokenBucketLimiter() *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (l *TokenBucketLimiter) getLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow consumes one token for key if available.
func (l *TokenBucketLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}

	limiter := l.getLimiter(key, limit, window)
	now := l.now()
	reservation := limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, 0, delay
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, window / time.Duration(limit)
}

// RateLimit returns a middleware enforcing config with limiter. It depends
// on clientIP (usually the same ClientIP definition installed globally, so
// the IP is resolved once per request) and on any extra dependencies such
// as the authentication middleware for StrategyUser.
//
// Allowed requests get X-RateLimit-* headers. Rejected requests exit with a
// pre-built 429 response carrying its own rate limit headers.
func RateLimit(config RateLimitConfig, limiter RateLimiter, clientIP *pipeline.Definition, deps ...*pipeline.Definition) *pipeline.Definition {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	userKey := config.UserKey
	if userKey == nil {
		userKey = func(user any) string { return fmt.Sprint(user) }
	}

	dependencies := append([]*pipeline.Definition{clientIP}, deps...)

	return pipeline.CreateMiddleware(dependencies, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		key := GetClientIP(inv.Context)
		switch config.Strategy {
		case StrategyUser:
			if user, ok := inv.Context[UserKey]; ok && user != nil {
				key = userKey(user)
			}
		case StrategyCustom:
			if config.KeyExtractor != nil {
				custom, err := config.KeyExtractor(inv)
				if err != nil {
					return nil, fmt.Errorf("extract rate limit key: %w", err)
				}
				key = custom
			}
		}

		allowed, remaining, reset := limiter.Allow(config.BucketName+":"+key, config.Limit, config.Window)
		headers := []pipeline.Header{
			{Name: "X-RateLimit-Limit", Value: strconv.Itoa(config.Limit)},
			{Name: "X-RateLimit-Remaining", Value: strconv.Itoa(remaining)},
			{Name: "X-RateLimit-Reset", Value: strconv.FormatInt(time.Now().Add(reset).Unix(), 10)},
		}

		if allowed {
			return next(pipeline.WithHeaders(headers...))
		}

		logger.Warn("Rate limit exceeded",
			zap.String("method", inv.Request.Method),
			zap.String("path", inv.Request.URL.Path),
			zap.String("key", key),
			zap.Int("limit", config.Limit),
		)

		// The 429 is passed through verbatim, so it carries its own headers.
		resp := pipeline.Text(http.StatusTooManyRequests, "Too Many Requests")
		for _, h := range headers {
			resp.Header.Set(h.Name, h.Value)
		}
		retryAfter := int64(reset.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		resp.Header.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		return exit(resp)
	}, pipeline.WithName("rate_limit"))
}
