package providers

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/genai"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// GeminiProvider implements generation using the official Google GenAI SDK.
// It is the only adapter with image understanding support.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	rateLimiter RateLimiter
	models      []ModelInfo
	log         *logger.Logger
}

// NewGeminiProvider creates a Gemini adapter against the public Gemini API
// backend.
func NewGeminiProvider(ctx context.Context, apiKey, model string, timeout time.Duration, limiter RateLimiter) (*GeminiProvider, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		rateLimiter: limiter,
		models:      geminiModels(),
		log:         logger.Get().With("provider", "gemini"),
	}, nil
}

// Name returns provider name.
func (p *GeminiProvider) Name() string { return ProviderNameGemini.String() }

// ListModels returns the static model table. Gemini model metadata changes
// rarely enough that a live listing round-trip is not worth it.
func (p *GeminiProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

func geminiModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:          ProviderNameGemini,
			Name:              "gemini-2.0-flash",
			Family:            "gemini-2.0",
			MaxTokens:         1048576,
			InputCostPer1K:    0.0001,
			OutputCostPer1K:   0.0004,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameGemini,
			Name:              "gemini-1.5-flash",
			Family:            "gemini-1.5",
			MaxTokens:         1000000,
			InputCostPer1K:    0.000075,
			OutputCostPer1K:   0.0003,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameGemini,
			Name:              "gemini-1.5-pro",
			Family:            "gemini-1.5",
			MaxTokens:         2000000,
			InputCostPer1K:    0.00125,
			OutputCostPer1K:   0.005,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
	}
}
