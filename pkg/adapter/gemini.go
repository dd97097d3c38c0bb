package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiAdapter drives a Gemini model over the Google GenAI API. Remote
// backends hold no local resources, so Load and Unload are no-ops.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates an adapter for one Gemini model.
func NewGeminiAdapter(apiKey, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GeminiAdapter{client: client, model: model}, nil
}

// Name returns the adapter identifier.
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

// Model returns the Gemini model this adapter drives.
func (a *GeminiAdapter) Model() string {
	return a.model
}

// Generate sends a prompt to Gemini and returns the completion text.
func (a *GeminiAdapter) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	var genCfg *genai.GenerateContentConfig
	if opts != nil && opts.MaxTokens > 0 {
		genCfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(opts.MaxTokens)}
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("google returned no candidates")
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	return content, nil
}

// Load is a no-op: remote models hold no local resources.
func (a *GeminiAdapter) Load(_ context.Context) error {
	return nil
}

// Unload is a no-op: remote models hold no local resources.
func (a *GeminiAdapter) Unload(_ context.Context) error {
	return nil
}
