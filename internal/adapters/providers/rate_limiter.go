package providers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"hermes/pkg/errors"
)

// RateLimiter gates outbound provider requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// LocalLimiter wraps a token bucket for single-instance deployments.
type LocalLimiter struct {
	limiter  *rate.Limiter
	provider ProviderName
}

// NewLocalLimiter creates an in-memory limiter.
// reqPerMinute: maximum requests per minute (e.g., 500 for OpenAI Tier 1)
// burst: maximum burst size (typically 10-20% of rate)
func NewLocalLimiter(provider ProviderName, reqPerMinute float64, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &LocalLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
		provider: provider,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter wait cancelled for provider %s", l.provider)
	}
	return nil
}

// Allow checks if a request can proceed and consumes a token if available.
func (l *LocalLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the current rate limit in requests per minute.
func (l *LocalLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter is a rate limiter that never blocks (for testing or disabled rate limiting).
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error {
	return nil
}

// Allow always returns true.
func (l *NoOpLimiter) Allow() bool {
	return true
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 {
	return -1
}

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	Enabled      bool
	ReqPerMinute float64
	Burst        int
}

// DefaultRateLimits returns conservative per-provider limits matching the
// providers' free or entry tiers.
func DefaultRateLimits() map[ProviderName]RateLimitConfig {
	return map[ProviderName]RateLimitConfig{
		ProviderNameOpenAI: {
			Enabled:      true,
			ReqPerMinute: 500, // OpenAI Tier 1: 500 req/min
			Burst:        50,
		},
		ProviderNameGrok: {
			Enabled:      true,
			ReqPerMinute: 60,
			Burst:        10,
		},
		ProviderNameOllama: {
			Enabled:      false, // local server, no upstream quota
			ReqPerMinute: 0,
			Burst:        0,
		},
		ProviderNameGemini: {
			Enabled:      true,
			ReqPerMinute: 60, // Gemini free tier: 60 req/min
			Burst:        10,
		},
		ProviderNameAnthropic: {
			Enabled:      true,
			ReqPerMinute: 50, // Claude entry tier: 50 req/min
			Burst:        10,
		},
	}
}

// RateLimiterFactory creates rate limiters with optional Redis support.
type RateLimiterFactory struct {
	redisClient *redis.Client
	useRedis    bool
}

// NewRateLimiterFactory creates a factory for rate limiters.
// With a nil redisClient, local in-memory limiters are used (single instance).
// With a Redis client, limiters coordinate across gateway instances.
func NewRateLimiterFactory(redisClient *redis.Client) *RateLimiterFactory {
	return &RateLimiterFactory{
		redisClient: redisClient,
		useRedis:    redisClient != nil,
	}
}

// Create creates a rate limiter for the specified provider.
func (f *RateLimiterFactory) Create(provider ProviderName, config RateLimitConfig) RateLimiter {
	if !config.Enabled || config.ReqPerMinute <= 0 {
		return NewNoOpLimiter()
	}

	if f.useRedis {
		return NewRedisRateLimiter(f.redisClient, provider, config.ReqPerMinute, config.Burst)
	}

	return NewLocalLimiter(provider, config.ReqPerMinute, config.Burst)
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}
