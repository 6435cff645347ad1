package providers

import "strings"

// ProviderName identifies a provider adapter
type ProviderName string

// Provider name constants
const (
	ProviderNameOpenAI    ProviderName = "openai"
	ProviderNameGrok      ProviderName = "grok"
	ProviderNameOllama    ProviderName = "ollama"
	ProviderNameGemini    ProviderName = "gemini"
	ProviderNameAnthropic ProviderName = "anthropic"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameGrok, ProviderNameOllama, ProviderNameGemini, ProviderNameAnthropic:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all supported provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{
		ProviderNameOpenAI,
		ProviderNameGrok,
		ProviderNameOllama,
		ProviderNameGemini,
		ProviderNameAnthropic,
	}
}

// NormalizeProviderName lowercases and trims a caller-supplied provider name
func NormalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
