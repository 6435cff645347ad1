package providers

import (
	"context"
	"encoding/json"

	"hermes/pkg/errors"
)

// Ensure GrokProvider implements the streaming contract
var (
	_ Provider          = (*GrokProvider)(nil)
	_ StreamingProvider = (*GrokProvider)(nil)
)

// GenerateText sends a chat completion request to the xAI API.
func (p *GrokProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, grokCreativeTemperature)

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
		Provider: ProviderNameGrok.String(),
		Model:    resolveModel(wireResp.Model, model),
		Text:     wireResp.Choices[0].Message.Content,
		Usage:    NormalizeUsage(wireResp.Usage.raw()),
	}, nil
}

// GenerateStructured requests JSON-mode output and routes it through the
// validator. An unparseable model reply is reported inside the result.
func (p *GrokProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := p.precheck(ctx); err != nil {
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
	return structuredResultFrom(ProviderNameGrok, resolveModel(wireResp.Model, model), wireResp.Choices[0].Message.Content, usage, req.Schema), nil
}

// GenerateTextStream opens an SSE completion stream.
func (p *GrokProvider) GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, grokCreativeTemperature)

	wireReq := openAIRequest{
		Model:         model,
		Messages:      openAIMessages(req.System, req.Prompt),
		Temperature:   &temp,
		MaxTokens:     resolveMaxTokens(req.MaxTokens),
		Stream:        true,
		StreamOptions: &openAIStreamOptions{IncludeUsage: true},
	}

	resp, err := postStream(ctx, p.client, p.baseURL+"/chat/completions", p.headers(), wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "grok stream request")
	}

	events := make(chan StreamEvent)
	go relayOpenAIStream(resp.Body, events, streamDoneExtra(ProviderNameGrok.String(), model))
	return NewStream(events), nil
}

// complete runs one synchronous chat completion round-trip.
func (p *GrokProvider) complete(ctx context.Context, wireReq openAIRequest) (*openAIResponse, error) {
	respBody, err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", p.headers(), wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "grok chat completion")
	}

	var wireResp openAIResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "unmarshal grok response: %v", err)
	}
	if len(wireResp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrProviderTransport, "grok response contained no choices")
	}

	return &wireResp, nil
}

func (p *GrokProvider) precheck(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.Wrap(errors.ErrInvalidInput, "grok API key not configured")
	}
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return &RateLimitError{
			Provider: ProviderNameGrok,
			Limit:    p.rateLimiter.Limit(),
			Err:      err,
		}
	}
	return nil
}
