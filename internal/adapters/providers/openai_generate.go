package providers

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"hermes/pkg/errors"
)

// Ensure OpenAIProvider implements the streaming contract
var (
	_ Provider          = (*OpenAIProvider)(nil)
	_ StreamingProvider = (*OpenAIProvider)(nil)
)

// GenerateText sends a chat completion request through the official SDK.
func (p *OpenAIProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, openAICreativeTemperature)
	params := openAIChatParams(model, req.System, req.Prompt, temp, resolveMaxTokens(req.MaxTokens))

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "openai chat completion: %v", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrProviderTransport, "openai response contained no choices")
	}

	p.log.Debug("Chat completion finished",
		"model", completion.Model,
		"tokens_used", completion.Usage.TotalTokens)

	return &TextResult{
		Provider: ProviderNameOpenAI.String(),
		Model:    resolveModel(completion.Model, model),
		Text:     completion.Choices[0].Message.Content,
		Usage: NormalizeUsage(&RawUsage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			TotalTokens:  completion.Usage.TotalTokens,
		}),
	}, nil
}

// GenerateStructured runs a JSON-mode completion and routes the output
// through the validator.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, 0)
	params := openAIChatParams(model, structuredSystemPrompt(req.System, req.Schema), req.Prompt, temp, resolveMaxTokens(req.MaxTokens))
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "openai structured completion: %v", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrProviderTransport, "openai response contained no choices")
	}

	usage := NormalizeUsage(&RawUsage{
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
		TotalTokens:  completion.Usage.TotalTokens,
	})

	return structuredResultFrom(ProviderNameOpenAI, resolveModel(completion.Model, model), completion.Choices[0].Message.Content, usage, req.Schema), nil
}

// GenerateTextStream opens an SSE completion stream through the SDK. Failures
// after the stream opens surface as the terminal Error event.
func (p *OpenAIProvider) GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)

	model := resolveModel(req.Model, p.model)
	temp := resolveTemperature(req.Temperature, openAICreativeTemperature)
	params := openAIChatParams(model, req.System, req.Prompt, temp, resolveMaxTokens(req.MaxTokens))
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer cancel()
		defer func() { _ = stream.Close() }()

		var usage Usage
		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.TotalTokens > 0 {
				usage = NormalizeUsage(&RawUsage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
					TotalTokens:  chunk.Usage.TotalTokens,
				})
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- ChunkEvent(choice.Delta.Content)
				}
			}
		}

		if err := stream.Err(); err != nil {
			events <- ErrorEvent(err.Error())
			return
		}
		events <- DoneEvent(usage, streamDoneExtra(ProviderNameOpenAI.String(), model))
	}()

	return NewStream(events), nil
}

// openAIChatParams assembles the common SDK parameter block.
func openAIChatParams(model, system, prompt string, temperature float64, maxTokens int) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	params.Temperature = openai.Float(temperature)
	params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	return params
}

func (p *OpenAIProvider) wait(ctx context.Context) error {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return &RateLimitError{
			Provider: ProviderNameOpenAI,
			Limit:    p.rateLimiter.Limit(),
			Err:      err,
		}
	}
	return nil
}
