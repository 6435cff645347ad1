package providers

import (
	"context"
	"encoding/json"

	"hermes/pkg/errors"
)

// Ensure OllamaProvider implements the streaming contract
var (
	_ Provider          = (*OllamaProvider)(nil)
	_ StreamingProvider = (*OllamaProvider)(nil)
)

// GenerateText sends a chat completion request to the local Ollama server.
func (p *OllamaProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, ollamaCreativeTemperature)

	wireReq := openAIRequest{
		Model:       model,
		Messages:    openAIMessages(req.System, req.Prompt),
		Temperature: &temp,
		MaxTokens:   resolveMaxTokens(req.MaxTokens),
	}

	wireResp, err := p.complete(ctx, wireReq)
	if err != nil {
		return nil, err
	}

	return &TextResult{
		Provider: ProviderNameOllama.String(),
		Model:    resolveModel(wireResp.Model, model),
		Text:     wireResp.Choices[0].Message.Content,
		Usage:    NormalizeUsage(wireResp.Usage.raw()),
	}, nil
}

// GenerateStructured requests JSON output; newer Ollama releases honor the
// response_format field and older ones still follow the prompt instruction.
func (p *OllamaProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, 0)

	wireReq := openAIRequest{
		Model:          model,
		Messages:       openAIMessages(structuredSystemPrompt(req.System, req.Schema), req.Prompt),
		Temperature:    &temp,
		MaxTokens:      resolveMaxTokens(req.MaxTokens),
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	wireResp, err := p.complete(ctx, wireReq)
	if err != nil {
		return nil, err
	}

	usage := NormalizeUsage(wireResp.Usage.raw())
	return structuredResultFrom(ProviderNameOllama, resolveModel(wireResp.Model, model), wireResp.Choices[0].Message.Content, usage, req.Schema), nil
}

// GenerateTextStream opens an SSE completion stream.
func (p *OllamaProvider) GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, ollamaCreativeTemperature)

	wireReq := openAIRequest{
		Model:         model,
		Messages:      openAIMessages(req.System, req.Prompt),
		Temperature:   &temp,
		MaxTokens:     resolveMaxTokens(req.MaxTokens),
		Stream:        true,
		StreamOptions: &openAIStreamOptions{IncludeUsage: true},
	}

	resp, err := postStream(ctx, p.client, p.baseURL+"/chat/completions", nil, wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "ollama stream request")
	}

	events := make(chan StreamEvent)
	go relayOpenAIStream(resp.Body, events, streamDoneExtra(ProviderNameOllama.String(), model))
	return NewStream(events), nil
}

func (p *OllamaProvider) complete(ctx context.Context, wireReq openAIRequest) (*openAIResponse, error) {
	respBody, err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", nil, wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "ollama chat completion")
	}

	var wireResp openAIResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "unmarshal ollama response: %v", err)
	}
	if len(wireResp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrProviderTransport, "ollama response contained no choices")
	}

	return &wireResp, nil
}

func (p *OllamaProvider) wait(ctx context.Context) error {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return &RateLimitError{
			Provider: ProviderNameOllama,
			Limit:    p.rateLimiter.Limit(),
			Err:      err,
		}
	}
	return nil
}
