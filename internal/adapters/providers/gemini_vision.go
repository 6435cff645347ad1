package providers

import (
	"context"

	"google.golang.org/genai"

	"hermes/pkg/errors"
)

const (
	defaultDescribePrompt = "Describe this image in detail."
	defaultOCRPrompt      = "Extract all text from this image."
	defaultImageMimeType  = "image/jpeg"
)

// DescribeImage produces a text description of the supplied image bytes.
func (p *GeminiProvider) DescribeImage(ctx context.Context, req VisionRequest) (*TextResult, error) {
	if len(req.Image) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "image payload is empty")
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultDescribePrompt
	}

	config := geminiConfig("", resolveTemperature(req.Temperature, geminiCreativeTemperature), resolveMaxTokens(req.MaxTokens))

	resp, err := p.client.Models.GenerateContent(ctx, model, geminiImageContents(req, prompt), config)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "gemini describe image: %v", err)
	}

	p.log.Debug("Image description finished", "model", model, "image_bytes", len(req.Image))

	return &TextResult{
		Provider: ProviderNameGemini.String(),
		Model:    model,
		Text:     geminiResponseText(resp),
		Usage:    NormalizeUsage(geminiUsage(resp)),
	}, nil
}

// PerformOCR extracts text from the supplied image as structured JSON.
func (p *GeminiProvider) PerformOCR(ctx context.Context, req VisionRequest) (*StructuredResult, error) {
	if len(req.Image) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "image payload is empty")
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	model := resolveModel(req.Model, p.model)
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultOCRPrompt
	}

	config := geminiConfig(structuredSystemPrompt("", req.Schema), resolveTemperature(req.Temperature, 0), resolveMaxTokens(req.MaxTokens))
	config.ResponseMIMEType = "application/json"

	resp, err := p.client.Models.GenerateContent(ctx, model, geminiImageContents(req, prompt), config)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderTransport, "gemini OCR: %v", err)
	}

	usage := NormalizeUsage(geminiUsage(resp))
	return structuredResultFrom(ProviderNameGemini, model, geminiResponseText(resp), usage, req.Schema), nil
}

// geminiImageContents builds the user turn with the image ahead of the prompt.
func geminiImageContents(req VisionRequest, prompt string) []*genai.Content {
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = defaultImageMimeType
	}

	return []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: req.Image}},
			{Text: prompt},
		},
	}}
}
