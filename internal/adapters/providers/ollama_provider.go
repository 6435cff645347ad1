package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"hermes/pkg/errors"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// OllamaProvider talks to a local Ollama server through its OpenAI-compatible
// endpoint. No credentials are involved; the base URL is the registration
// signal.
type OllamaProvider struct {
	baseURL     string
	model       string
	client      *http.Client
	rateLimiter RateLimiter
}

// NewOllamaProvider creates an Ollama adapter. The baseURL points at the
// OpenAI-compatible root (the /v1 suffix included); empty falls back to the
// default local server.
func NewOllamaProvider(baseURL, model string, timeout time.Duration, limiter RateLimiter) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaProvider{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		client:      &http.Client{Timeout: timeout},
		rateLimiter: limiter,
	}
}

// Name returns provider name.
func (p *OllamaProvider) Name() string { return ProviderNameOllama.String() }

// ollamaTagsResponse is the native /api/tags listing shape.
type ollamaTagsResponse struct {
	Models []ollamaModelTag `json:"models"`
}

type ollamaModelTag struct {
	Name    string `json:"name"`
	Details struct {
		Family string `json:"family"`
	} `json:"details"`
}

// ListModels queries the native tags endpoint, which lives beside the
// OpenAI-compatible surface rather than under it. Local models carry no
// per-token pricing.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	respBody, err := getJSON(ctx, p.client, p.tagsURL(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "ollama list models")
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "unmarshal ollama tags: %v", err)
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, tag := range tags.Models {
		models = append(models, ModelInfo{
			Provider:          ProviderNameOllama,
			Name:              tag.Name,
			Family:            tag.Details.Family,
			SupportsStreaming: true,
		})
	}
	return models, nil
}

func (p *OllamaProvider) tagsURL() string {
	return strings.TrimSuffix(p.baseURL, "/v1") + "/api/tags"
}
