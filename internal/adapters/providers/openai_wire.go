package providers

import (
	"encoding/json"
	"io"
)

// OpenAI-compatible chat completion wire types, shared by every adapter that
// speaks the OpenAI REST dialect over raw HTTP (xAI, Ollama's /v1 endpoint).

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Stream         bool                  `json:"stream,omitempty"`
	StreamOptions  *openAIStreamOptions  `json:"stream_options,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// raw converts wire usage for normalization. A nil receiver means the
// upstream reported nothing.
func (u *openAIUsage) raw() *RawUsage {
	if u == nil {
		return nil
	}
	return &RawUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

type openAIStreamChunk struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content string `json:"content"`
}

type openAIModelList struct {
	Data []openAIModelEntry `json:"data"`
}

type openAIModelEntry struct {
	ID string `json:"id"`
}

// openAIMessages builds the two-message layout every call uses: an optional
// system message followed by the user prompt.
func openAIMessages(system, prompt string) []openAIMessage {
	msgs := make([]openAIMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: prompt})
	return msgs
}

// relayOpenAIStream pumps OpenAI-dialect SSE chunks into stream events,
// sends exactly one terminal event and closes the channel. Usage arrives on
// the final chunk when stream_options.include_usage was requested.
func relayOpenAIStream(body io.ReadCloser, events chan<- StreamEvent, extra map[string]interface{}) {
	defer close(events)
	defer func() { _ = body.Close() }()

	scanner := newSSEScanner(body)
	var usage Usage

	for {
		payload, err := scanner.Next()
		if err == io.EOF {
			events <- DoneEvent(usage, extra)
			return
		}
		if err != nil {
			events <- ErrorEvent(err.Error())
			return
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			events <- ErrorEvent("malformed stream chunk: " + err.Error())
			return
		}

		if chunk.Usage != nil {
			usage = NormalizeUsage(chunk.Usage.raw())
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				events <- ChunkEvent(choice.Delta.Content)
			}
		}
	}
}
