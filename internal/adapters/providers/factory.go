package providers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"hermes/internal/adapters/config"
	"hermes/pkg/errors"
)

// BuildRegistry initializes a Registry with every provider the configuration
// carries credentials for (a base URL, for local servers). A provider without
// credentials is not registered at all; a disabled one is registered but
// invisible to lookups.
//
// redisClient is optional. With RATE_LIMIT_USE_REDIS set and a client present,
// rate limiting coordinates across gateway instances; otherwise limiters are
// local to this process.
func BuildRegistry(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*Registry, error) {
	registry := NewRegistry()
	limits := DefaultRateLimits()

	var limiterRedis *redis.Client
	if cfg.RateLimit.UseRedis {
		limiterRedis = redisClient
	}
	limiterFactory := NewRateLimiterFactory(limiterRedis)

	createLimiter := func(name ProviderName) RateLimiter {
		limit := limits[name]
		if !cfg.RateLimit.Enabled {
			limit.Enabled = false
		}
		return limiterFactory.Create(name, limit)
	}

	timeout := cfg.Providers.Timeout

	if cfg.Providers.OpenAI.APIKey != "" {
		err := registry.Register(Registration{
			Provider: NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model, timeout, createLimiter(ProviderNameOpenAI)),
			Enabled:  !cfg.Providers.OpenAI.Disabled,
			Priority: cfg.Providers.OpenAI.Priority,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Grok.APIKey != "" {
		err := registry.Register(Registration{
			Provider: NewGrokProvider(cfg.Providers.Grok.APIKey, cfg.Providers.Grok.BaseURL, cfg.Providers.Grok.Model, timeout, createLimiter(ProviderNameGrok)),
			Enabled:  !cfg.Providers.Grok.Disabled,
			Priority: cfg.Providers.Grok.Priority,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Ollama.BaseURL != "" {
		err := registry.Register(Registration{
			Provider: NewOllamaProvider(cfg.Providers.Ollama.BaseURL, cfg.Providers.Ollama.Model, timeout, createLimiter(ProviderNameOllama)),
			Enabled:  !cfg.Providers.Ollama.Disabled,
			Priority: cfg.Providers.Ollama.Priority,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Gemini.APIKey != "" {
		provider, err := NewGeminiProvider(ctx, cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model, timeout, createLimiter(ProviderNameGemini))
		if err != nil {
			return nil, err
		}
		err = registry.Register(Registration{
			Provider: provider,
			Enabled:  !cfg.Providers.Gemini.Disabled,
			Priority: cfg.Providers.Gemini.Priority,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Anthropic.APIKey != "" {
		err := registry.Register(Registration{
			Provider: NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, cfg.Providers.Anthropic.Model, timeout, createLimiter(ProviderNameAnthropic)),
			Enabled:  !cfg.Providers.Anthropic.Disabled,
			Priority: cfg.Providers.Anthropic.Priority,
		})
		if err != nil {
			return nil, err
		}
	}

	if len(registry.All()) == 0 {
		return nil, errors.Wrap(errors.ErrUnavailable, "no providers configured")
	}

	return registry, nil
}
