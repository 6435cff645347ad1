package providers

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"hermes/pkg/errors"
)

// Ensure GeminiProvider implements the streaming and vision contracts
var (
	_ Provider          = (*GeminiProvider)(nil)
	_ StreamingProvider = (*GeminiProvider)(nil)
	_ VisionProvider    = (*GeminiProvider)(nil)
)

// GenerateText sends a content generation request through the GenAI SDK.
func (p *GeminiProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	config := geminiConfig(req.System, resolveTemperature(req.Temperature, geminiCreativeTemperature), resolveMaxTokens(req.MaxTokens))

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "gemini generate content: %v", err)
	}

	p.log.Debug("Content generation finished", "model", model)

	return &TextResult{
		Provider: ProviderNameGemini.String(),
		Model:    model,
		Text:     geminiResponseText(resp),
		Usage:    NormalizeUsage(geminiUsage(resp)),
	}, nil
}

// GenerateStructured requests application/json output and routes it through
// the validator.
func (p *GeminiProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	config := geminiConfig(structuredSystemPrompt(req.System, req.Schema), resolveTemperature(req.Temperature, 0), resolveMaxTokens(req.MaxTokens))
	config.ResponseMIMEType = "application/json"

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "gemini structured generation: %v", err)
	}

	usage := NormalizeUsage(geminiUsage(resp))
	return structuredResultFrom(ProviderNameGemini, model, geminiResponseText(resp), usage, req.Schema), nil
}

// GenerateTextStream opens a streaming generation. The SDK exposes the stream
// as an iterator; each yielded response carries a text delta.
func (p *GeminiProvider) GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	config := geminiConfig(req.System, resolveTemperature(req.Temperature, geminiCreativeTemperature), resolveMaxTokens(req.MaxTokens))

	stream := p.client.Models.GenerateContentStream(ctx, model, genai.Text(req.Prompt), config)

	events := make(chan StreamEvent)
	go func() {
		defer close(events)

		var raw *RawUsage
		for resp, err := range stream {
			if err != nil {
				events <- ErrorEvent(err.Error())
				return
			}

			if text := geminiResponseText(resp); text != "" {
				events <- ChunkEvent(text)
			}
			if u := geminiUsage(resp); u != nil {
				raw = u
			}
		}

		events <- DoneEvent(NormalizeUsage(raw), streamDoneExtra(ProviderNameGemini.String(), model))
	}()

	return NewStream(events), nil
}

// geminiConfig assembles the common generation config block.
func geminiConfig(system string, temperature float64, maxTokens int) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	return config
}

// geminiResponseText concatenates the text parts of the first candidate.
func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// geminiUsage converts SDK usage metadata for normalization. Gemini counts
// are int32 on the wire.
func geminiUsage(resp *genai.GenerateContentResponse) *RawUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &RawUsage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:  int64(resp.UsageMetadata.TotalTokenCount),
	}
}

func (p *GeminiProvider) wait(ctx context.Context) error {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return &RateLimitError{
			Provider: ProviderNameGemini,
			Limit:    p.rateLimiter.Limit(),
			Err:      err,
		}
	}
	return nil
}
