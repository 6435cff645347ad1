package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hermes/pkg/errors"
)

func newAnthropicTestServer(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewAnthropicProvider("test-key", "claude-3-5-haiku-latest", 5*time.Second, NewNoOpLimiter())
	provider.apiURL = server.URL
	return provider
}

func TestAnthropicGenerateText(t *testing.T) {
	var captured anthropicRequest
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("unexpected version header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Model:      "claude-3-5-haiku-latest",
			Content:    []anthropicContentBlock{{Type: "text", Text: "Hi."}},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 9, OutputTokens: 3},
		})
	})

	result, err := provider.GenerateText(context.Background(), TextRequest{
		System: "Be brief.",
		Prompt: "Say hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Text != "Hi." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	// The Messages API reports no total; normalization synthesizes input+output
	if result.Usage.TotalTokens != 12 {
		t.Fatalf("expected synthesized total 12, got %+v", result.Usage)
	}

	if captured.System != "Be brief." {
		t.Fatalf("expected top-level system field, got %q", captured.System)
	}
	if captured.MaxTokens != defaultMaxTokens {
		t.Fatalf("max_tokens is mandatory on this API, got %d", captured.MaxTokens)
	}
	if captured.Temperature == nil || *captured.Temperature != anthropicCreativeTemperature {
		t.Fatalf("expected creative default temperature, got %v", captured.Temperature)
	}
}

func TestAnthropicMultipleTextBlocks(t *testing.T) {
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{
				{Type: "text", Text: "part one "},
				{Type: "thinking", Text: "ignored"},
				{Type: "text", Text: "part two"},
			},
		})
	})

	result, err := provider.GenerateText(context.Background(), TextRequest{Prompt: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "part one part two" {
		t.Fatalf("unexpected concatenation: %q", result.Text)
	}
}

func TestAnthropicGenerateStructured(t *testing.T) {
	var captured anthropicRequest
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{{Type: "text", Text: `{"city":"Oslo"}`}},
			Usage:   anthropicUsage{InputTokens: 5, OutputTokens: 4},
		})
	})

	result, err := provider.GenerateStructured(context.Background(), StructuredRequest{
		Prompt: "Extract the city",
		Schema: map[string]interface{}{"type": "object"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Valid {
		t.Fatalf("expected valid result, parse error: %s", result.ParseError)
	}
	if captured.Temperature == nil || *captured.Temperature != 0 {
		t.Fatalf("expected deterministic default temperature, got %v", captured.Temperature)
	}
	if captured.System == "" {
		t.Fatal("expected JSON instruction in system prompt")
	}
}

func TestAnthropicGenerateTextStream(t *testing.T) {
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("expected stream flag in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: message_start\n" +
				"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":9}}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n" +
				"event: message_delta\n" +
				"data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":3}}\n\n" +
				"event: message_stop\n" +
				"data: {\"type\":\"message_stop\"}\n\n"))
	})

	stream, err := provider.GenerateTextStream(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, usage, errMsg := stream.Collect()
	if errMsg != "" {
		t.Fatalf("unexpected stream error: %s", errMsg)
	}
	if text != "Hello" {
		t.Fatalf("unexpected text: %q", text)
	}
	if usage.InputTokens != 9 || usage.OutputTokens != 3 || usage.TotalTokens != 12 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestAnthropicStreamErrorEvent(t *testing.T) {
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: error\n" +
				"data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"))
	})

	stream, err := provider.GenerateTextStream(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, errMsg := stream.Collect()
	if errMsg != "Overloaded" {
		t.Fatalf("expected upstream error message, got %q", errMsg)
	}
}

func TestAnthropicUpstreamError(t *testing.T) {
	provider := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`))
	})

	_, err := provider.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if !errors.Is(err, errors.ErrProviderTransport) {
		t.Fatalf("expected ErrProviderTransport, got %v", err)
	}
}

func TestAnthropicStaticModels(t *testing.T) {
	provider := NewAnthropicProvider("key", "claude-3-5-haiku-latest", time.Second, NewNoOpLimiter())

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected static models")
	}
	for _, m := range models {
		if m.Provider != ProviderNameAnthropic || !m.SupportsStreaming {
			t.Fatalf("unexpected model entry: %+v", m)
		}
	}
}
