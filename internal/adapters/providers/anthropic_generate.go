package providers

import (
	"context"
	"encoding/json"
	"io"

	"hermes/pkg/errors"
)

// Ensure AnthropicProvider implements the streaming contract
var (
	_ Provider          = (*AnthropicProvider)(nil)
	_ StreamingProvider = (*AnthropicProvider)(nil)
)

// Anthropic Messages API wire types
type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicUsage carries input and output counts; the API never reports a
// total, so normalization synthesizes one.
type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func (u anthropicUsage) raw() *RawUsage {
	return &RawUsage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

// anthropicStreamEvent is the union of the SSE event payloads the stream
// relay cares about. Usage arrives split across message_start (input) and
// message_delta (output).
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends a messages request to the Anthropic API.
func (p *AnthropicProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, anthropicCreativeTemperature)

	wireReq := anthropicRequest{
		Model:       model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   resolveMaxTokens(req.MaxTokens),
		Temperature: &temp,
	}

	wireResp, err := p.complete(ctx, wireReq)
	if err != nil {
		return nil, err
	}

	return &TextResult{
		Provider: ProviderNameAnthropic.String(),
		Model:    resolveModel(wireResp.Model, model),
		Text:     anthropicResponseText(wireResp),
		Usage:    NormalizeUsage(wireResp.Usage.raw()),
	}, nil
}

// GenerateStructured steers the model with a JSON-only system prompt; the
// Messages API has no native JSON mode.
func (p *AnthropicProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, 0)

	wireReq := anthropicRequest{
		Model:       model,
		System:      structuredSystemPrompt(req.System, req.Schema),
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   resolveMaxTokens(req.MaxTokens),
		Temperature: &temp,
	}

	wireResp, err := p.complete(ctx, wireReq)
	if err != nil {
		return nil, err
	}

	usage := NormalizeUsage(wireResp.Usage.raw())
	return structuredResultFrom(ProviderNameAnthropic, resolveModel(wireResp.Model, model), anthropicResponseText(wireResp), usage, req.Schema), nil
}

// GenerateTextStream opens an SSE messages stream.
func (p *AnthropicProvider) GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error) {
	if err := p.precheck(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, anthropicCreativeTemperature)

	wireReq := anthropicRequest{
		Model:       model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   resolveMaxTokens(req.MaxTokens),
		Temperature: &temp,
		Stream:      true,
	}

	resp, err := postStream(ctx, p.client, p.apiURL, p.headers(), wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic stream request")
	}

	events := make(chan StreamEvent)
	go relayAnthropicStream(resp.Body, events, streamDoneExtra(ProviderNameAnthropic.String(), model))
	return NewStream(events), nil
}

func (p *AnthropicProvider) complete(ctx context.Context, wireReq anthropicRequest) (*anthropicResponse, error) {
	respBody, err := postJSON(ctx, p.client, p.apiURL, p.headers(), wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic messages request")
	}

	var wireResp anthropicResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "unmarshal anthropic response: %v", err)
	}

	return &wireResp, nil
}

// anthropicResponseText concatenates the text content blocks.
func anthropicResponseText(resp *anthropicResponse) string {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

// relayAnthropicStream pumps Messages API SSE events into stream events,
// sends exactly one terminal event and closes the channel.
func relayAnthropicStream(body io.ReadCloser, events chan<- StreamEvent, extra map[string]interface{}) {
	defer close(events)
	defer func() { _ = body.Close() }()

	scanner := newSSEScanner(body)
	var raw RawUsage

	for {
		payload, err := scanner.Next()
		if err == io.EOF {
			events <- DoneEvent(NormalizeUsage(&raw), extra)
			return
		}
		if err != nil {
			events <- ErrorEvent(err.Error())
			return
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			events <- ErrorEvent("malformed stream event: " + err.Error())
			return
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				raw.InputTokens = event.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Text != "" {
				events <- ChunkEvent(event.Delta.Text)
			}
		case "message_delta":
			if event.Usage != nil {
				raw.OutputTokens = event.Usage.OutputTokens
			}
		case "message_stop":
			events <- DoneEvent(NormalizeUsage(&raw), extra)
			return
		case "error":
			msg := "anthropic stream error"
			if event.Error != nil && event.Error.Message != "" {
				msg = event.Error.Message
			}
			events <- ErrorEvent(msg)
			return
		}
	}
}

func (p *AnthropicProvider) precheck(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.Wrap(errors.ErrInvalidInput, "anthropic API key not configured")
	}
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return &RateLimitError{
			Provider: ProviderNameAnthropic,
			Limit:    p.rateLimiter.Limit(),
			Err:      err,
		}
	}
	return nil
}
