package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultLocalAIURL = "http://127.0.0.1:8080/v1"

// LocalAIAdapter drives one model on a local OpenAI-compatible server
// (llama.cpp server, LM Studio). Such servers manage residency themselves,
// so Load verifies the model is being served and Unload is a no-op.
type LocalAIAdapter struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewLocalAIAdapter creates an adapter for a model served over the OpenAI
// wire format. An empty baseURL falls back to the llama.cpp server default.
func NewLocalAIAdapter(model, baseURL string) (*LocalAIAdapter, error) {
	if model == "" {
		return nil, fmt.Errorf("local model name is required")
	}
	if baseURL == "" {
		baseURL = defaultLocalAIURL
	}

	// Local servers ignore the key but the wire format requires one.
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("local"),
	)
	return &LocalAIAdapter{client: client, model: model, baseURL: baseURL}, nil
}

// Name returns the adapter identifier.
func (a *LocalAIAdapter) Name() string {
	return "local"
}

// Model returns the model identifier this adapter drives.
func (a *LocalAIAdapter) Model() string {
	return a.model
}

// Generate sends a prompt to the server and returns the completion text.
func (a *LocalAIAdapter) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	o := opts.withDefaults()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(o.MaxTokens)),
	}
	if o.Temperature > 0 {
		params.Temperature = openai.Float(o.Temperature)
	}
	if o.Seed > 0 {
		params.Seed = openai.Int(int64(o.Seed))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("local server error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("local server returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Load verifies the server is reachable and lists the model.
func (a *LocalAIAdapter) Load(ctx context.Context) error {
	page, err := a.client.Models.List(ctx)
	if err != nil {
		return &AdapterError{Temporary: true, Err: fmt.Errorf("local server not reachable at %s: %w", a.baseURL, err)}
	}

	for _, m := range page.Data {
		if strings.EqualFold(m.ID, a.model) {
			return nil
		}
	}
	return fmt.Errorf("local server does not serve %q: %w", a.model, ErrModelNotFound)
}

// Unload is a no-op: residency belongs to the server process.
func (a *LocalAIAdapter) Unload(_ context.Context) error {
	return nil
}
