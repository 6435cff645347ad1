package providers

import "context"

// Provider defines the contract each provider adapter must satisfy.
type Provider interface {
	Name() string

	// GenerateText produces a single text completion.
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)

	// GenerateStructured produces JSON output validated against the request schema.
	// Invalid model output is reported inside the result, not as an error.
	GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResult, error)

	// ListModels returns the models the provider currently serves. Adapters
	// backed by a live listing endpoint return transport errors; the registry
	// downgrades those to a warning and an empty slice.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// StreamingProvider is implemented by adapters that can stream completions.
// Callers discover it by type assertion; there are no stub implementations.
type StreamingProvider interface {
	Provider

	// GenerateTextStream emits Chunk events followed by exactly one terminal
	// event. Usage is deferred to the terminal Done event.
	GenerateTextStream(ctx context.Context, req TextRequest) (*Stream, error)
}

// VisionProvider is implemented by adapters whose models accept image input.
type VisionProvider interface {
	Provider

	// DescribeImage produces a text description of the supplied image.
	DescribeImage(ctx context.Context, req VisionRequest) (*TextResult, error)

	// PerformOCR extracts structured text content from the supplied image.
	PerformOCR(ctx context.Context, req VisionRequest) (*StructuredResult, error)
}

// TextRequest represents a text generation request.
type TextRequest struct {
	Model  string
	System string
	Prompt string

	// Temperature nil means the provider's creative default applies
	Temperature *float64
	MaxTokens   int
}

// TextResult represents a completed text generation.
type TextResult struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
	Usage    Usage  `json:"usage"`
}

// StructuredRequest represents a JSON generation request. Only the top-level
// "type" of the schema is enforced; deep validation is the caller's business.
type StructuredRequest struct {
	Model  string
	System string
	Prompt string
	Schema map[string]interface{}

	// Temperature nil means 0: structured extraction is deterministic by default
	Temperature *float64
	MaxTokens   int
}

// StructuredResult carries parsed JSON output. Valid=false with ParseError set
// means the model's output could not be salvaged into the requested shape.
type StructuredResult struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Data       interface{} `json:"data"`
	Valid      bool        `json:"valid"`
	ParseError string      `json:"parse_error,omitempty"`
	Usage      Usage       `json:"usage"`
}

// VisionRequest represents an image understanding request. Image acquisition
// (files, PDFs, URLs) happens upstream; adapters receive raw bytes.
type VisionRequest struct {
	Model    string
	Prompt   string
	Image    []byte
	MimeType string

	// Schema applies to PerformOCR only
	Schema map[string]interface{}

	// Temperature nil means the creative default for DescribeImage and 0 for PerformOCR
	Temperature *float64
	MaxTokens   int
}

// ModelInfo describes the capabilities and pricing of a model.
type ModelInfo struct {
	Provider          ProviderName `json:"provider"`
	Name              string       `json:"name"`
	Family            string       `json:"family,omitempty"`
	MaxTokens         int          `json:"max_tokens,omitempty"`
	InputCostPer1K    float64      `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K   float64      `json:"output_cost_per_1k,omitempty"`
	SupportsImages    bool         `json:"supports_images"`
	SupportsStreaming bool         `json:"supports_streaming"`
}
