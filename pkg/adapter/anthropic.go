package adapter

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter drives a Claude model over the Anthropic API. Remote
// backends hold no local resources, so Load and Unload are no-ops.
type AnthropicAdapter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicAdapter creates an adapter for one Claude model.
func NewAnthropicAdapter(apiKey, model string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic model name is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: client, model: model}, nil
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Model returns the Claude model this adapter drives.
func (a *AnthropicAdapter) Model() string {
	return a.model
}

// Generate sends a prompt to Claude and returns the completion text.
func (a *AnthropicAdapter) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	o := opts.withDefaults()

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(o.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return content, nil
}

// Load is a no-op: remote models hold no local resources.
func (a *AnthropicAdapter) Load(_ context.Context) error {
	return nil
}

// Unload is a no-op: remote models hold no local resources.
func (a *AnthropicAdapter) Unload(_ context.Context) error {
	return nil
}
