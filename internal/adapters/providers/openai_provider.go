package providers

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// OpenAIProvider implements generation using the official OpenAI Go SDK.
type OpenAIProvider struct {
	client      openai.Client // NewClient returns Client (not *Client)
	model       string
	timeout     time.Duration
	rateLimiter RateLimiter
	models      []ModelInfo
	log         *logger.Logger
}

// NewOpenAIProvider creates an OpenAI adapter backed by the official SDK.
func NewOpenAIProvider(apiKey, model string, timeout time.Duration, limiter RateLimiter) *OpenAIProvider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:      client,
		model:       model,
		timeout:     timeout,
		rateLimiter: limiter,
		models:      openAIModels(),
		log:         logger.Get().With("provider", "openai"),
	}
}

// Name returns provider name.
func (p *OpenAIProvider) Name() string { return ProviderNameOpenAI.String() }

// ListModels queries the live model listing and merges in static pricing
// metadata for ids the table knows.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "openai list models: %v", err)
	}

	models := make([]ModelInfo, 0, len(page.Data))
	for _, entry := range page.Data {
		models = append(models, lookupModelInfo(p.models, ProviderNameOpenAI, entry.ID))
	}
	return models, nil
}

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:          ProviderNameOpenAI,
			Name:              "gpt-4o-mini",
			Family:            "gpt-4o",
			MaxTokens:         128000,
			InputCostPer1K:    0.00015,
			OutputCostPer1K:   0.0006,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameOpenAI,
			Name:              "gpt-4o",
			Family:            "gpt-4o",
			MaxTokens:         128000,
			InputCostPer1K:    0.0025,
			OutputCostPer1K:   0.01,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameOpenAI,
			Name:              "o1-mini",
			Family:            "o1",
			MaxTokens:         65536,
			InputCostPer1K:    0.008,
			OutputCostPer1K:   0.008,
			SupportsImages:    false,
			SupportsStreaming: true,
		},
	}
}
