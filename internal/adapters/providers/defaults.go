package providers

import (
	"encoding/json"
	"strings"

	"hermes/internal/structured"
)

// Creative-mode temperature per provider, applied when a text request leaves
// Temperature unset. Structured and OCR calls default to 0 instead.
const (
	openAICreativeTemperature    = 1.0
	grokCreativeTemperature      = 1.0
	ollamaCreativeTemperature    = 1.0
	geminiCreativeTemperature    = 0.9
	anthropicCreativeTemperature = 0.7
)

// defaultMaxTokens caps completions when the request does not say otherwise.
const defaultMaxTokens = 4096

func resolveModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func resolveTemperature(requested *float64, fallback float64) float64 {
	if requested != nil {
		return *requested
	}
	return fallback
}

func resolveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return defaultMaxTokens
}

// structuredSystemPrompt appends the JSON-only instruction and the schema to
// the caller's system prompt. Dialects without a native schema parameter get
// steered the same way as those with one.
func structuredSystemPrompt(system string, schema map[string]interface{}) string {
	instruction := "Respond ONLY with valid JSON. No prose, no code fences."
	if schema != nil {
		if encoded, err := json.Marshal(schema); err == nil {
			instruction += " The response must match this JSON schema: " + string(encoded)
		}
	}

	if system == "" {
		return instruction
	}
	return system + "\n\n" + instruction
}

// structuredResultFrom runs model text through the JSON validator and packs
// the outcome. Unparseable output stays a result, never an error.
func structuredResultFrom(provider ProviderName, model, text string, usage Usage, schema map[string]interface{}) *StructuredResult {
	outcome := structured.Validate(text, schema)
	return &StructuredResult{
		Provider:   provider.String(),
		Model:      model,
		Data:       outcome.Data,
		Valid:      outcome.Valid,
		ParseError: outcome.ParseError,
		Usage:      usage,
	}
}

// lookupModelInfo resolves a live model id against static metadata, falling
// back to a bare streaming-capable entry for ids the table does not know.
func lookupModelInfo(known []ModelInfo, provider ProviderName, id string) ModelInfo {
	for _, m := range known {
		if strings.EqualFold(m.Name, id) {
			return m
		}
	}
	return ModelInfo{Provider: provider, Name: id, SupportsStreaming: true}
}

// KnownModels returns every adapter's static model table. Used for pricing
// lookups that must not cost a network round trip. Ollama serves arbitrary
// local models and has no table.
func KnownModels() []ModelInfo {
	var models []ModelInfo
	models = append(models, openAIModels()...)
	models = append(models, grokModels()...)
	models = append(models, geminiModels()...)
	models = append(models, anthropicModels()...)
	return models
}
