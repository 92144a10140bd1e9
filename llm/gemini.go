package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// GenerateContentFunc matches genai's Models.GenerateContent
type GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient completes prompts with the Gemini API
type GeminiClient struct {
	generate GenerateContentFunc
	model    string
}

// NewGeminiClient creates a client for apiKey on the Gemini developer API
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewGeminiClientWith(client.Models.GenerateContent, model), nil
}

// NewGeminiClientWith creates a client on an existing generate function
func NewGeminiClientWith(generate GenerateContentFunc, model string) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{generate: generate, model: model}
}

// Model returns the configured model name
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete sends the system and user prompts and returns the response text
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.generate(ctx, c.model, genai.Text(req.User), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

var _ Client = (*GeminiClient)(nil)
