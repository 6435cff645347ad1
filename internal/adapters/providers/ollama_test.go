package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("local server must not receive credentials, got %q", auth)
		}

		_ = json.NewEncoder(w).Encode(openAIResponse{
			Model: "llama3.1",
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "local hello"}},
			},
			Usage: &openAIUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
		})
	}))
	t.Cleanup(server.Close)

	provider := NewOllamaProvider(server.URL+"/v1", "llama3.1", 5*time.Second, NewNoOpLimiter())

	result, err := provider.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "local hello" || result.Provider != "ollama" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestOllamaListModelsViaTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest","details":{"family":"llama"}},{"name":"qwen2.5-coder:7b","details":{"family":"qwen2"}}]}`))
	}))
	t.Cleanup(server.Close)

	provider := NewOllamaProvider(server.URL+"/v1", "llama3.1", 5*time.Second, NewNoOpLimiter())

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "llama3.1:latest" || models[0].Family != "llama" {
		t.Fatalf("unexpected model: %+v", models[0])
	}
	if models[0].InputCostPer1K != 0 {
		t.Fatal("local models must not carry pricing")
	}
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	provider := NewOllamaProvider("", "llama3.1", time.Second, NewNoOpLimiter())

	if provider.baseURL != defaultOllamaBaseURL {
		t.Fatalf("unexpected base URL: %s", provider.baseURL)
	}
	if provider.tagsURL() != "http://localhost:11434/api/tags" {
		t.Fatalf("unexpected tags URL: %s", provider.tagsURL())
	}
}
