package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"hermes/pkg/errors"
)

const defaultGrokBaseURL = "https://api.x.ai/v1"

// GrokProvider talks to the xAI API, which speaks the OpenAI chat dialect.
type GrokProvider struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	rateLimiter RateLimiter
	models      []ModelInfo
}

// NewGrokProvider creates a Grok adapter. An empty baseURL falls back to the
// public xAI endpoint.
func NewGrokProvider(apiKey, baseURL, model string, timeout time.Duration, limiter RateLimiter) *GrokProvider {
	if baseURL == "" {
		baseURL = defaultGrokBaseURL
	}
	return &GrokProvider{
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		client:      &http.Client{Timeout: timeout},
		rateLimiter: limiter,
		models:      grokModels(),
	}
}

// Name returns provider name.
func (p *GrokProvider) Name() string { return ProviderNameGrok.String() }

// ListModels queries the live xAI model listing and merges in static pricing
// metadata for ids the table knows.
func (p *GrokProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	respBody, err := getJSON(ctx, p.client, p.baseURL+"/models", p.headers())
	if err != nil {
		return nil, errors.Wrap(err, "grok list models")
	}

	var list openAIModelList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "unmarshal grok model list: %v", err)
	}

	models := make([]ModelInfo, 0, len(list.Data))
	for _, entry := range list.Data {
		models = append(models, lookupModelInfo(p.models, ProviderNameGrok, entry.ID))
	}
	return models, nil
}

func (p *GrokProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func grokModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:          ProviderNameGrok,
			Name:              "grok-2-latest",
			Family:            "grok-2",
			MaxTokens:         131072,
			InputCostPer1K:    0.002,
			OutputCostPer1K:   0.01,
			SupportsImages:    false,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameGrok,
			Name:              "grok-2-vision-1212",
			Family:            "grok-2",
			MaxTokens:         32768,
			InputCostPer1K:    0.002,
			OutputCostPer1K:   0.01,
			SupportsImages:    true,
			SupportsStreaming: true,
		},
		{
			Provider:          ProviderNameGrok,
			Name:              "grok-beta",
			Family:            "grok",
			MaxTokens:         131072,
			InputCostPer1K:    0.005,
			OutputCostPer1K:   0.015,
			SupportsImages:    false,
			SupportsStreaming: true,
		},
	}
}
