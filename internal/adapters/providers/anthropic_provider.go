package providers

import (
	"context"
	"net/http"
	"time"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider talks to the Anthropic Messages API, which has its own
// wire dialect: versioned header auth, a top-level system field and usage
// reported without a total.
type AnthropicProvider struct {
	apiKey      string
	apiURL      string
	model       string
	client      *http.Client
	rateLimiter RateLimiter
	models      []ModelInfo
}

// NewAnthropicProvider creates an Anthropic adapter.
func NewAnthropicProvider(apiKey, model string, timeout time.Duration, limiter RateLimiter) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:      apiKey,
		apiURL:      anthropicAPIURL,
		model:       model,
		client:      &http.Client{Timeout: timeout},
		rateLimiter: limiter,
		models:      anthropicModels(),
	}
}

// Name returns provider name.
func (p *AnthropicProvider) Name() string { return ProviderNameAnthropic.String() }

// ListModels returns the static model table.
func (p *AnthropicProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func anthropicModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:          ProviderNameAnthropic,
			Name:              "claude-3-5-haiku-latest",
			Family:            "claude-3.5",
			MaxTokens:         200000,
			InputCostPer1K:    0.0008,
			OutputCostPer1K:   0.004,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameAnthropic,
			Name:              "claude-3-5-sonnet-latest",
			Family:            "claude-3.5",
			MaxTokens:         200000,
			InputCostPer1K:    0.003,
			OutputCostPer1K:   0.015,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameAnthropic,
			Name:              "claude-3-opus-latest",
			Family:            "claude-3",
			MaxTokens:         200000,
			InputCostPer1K:    0.015,
			OutputCostPer1K:   0.075,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
	}
}
