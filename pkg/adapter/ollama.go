package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Explicit IPv4 address avoids IPv6 resolution issues with localhost on
// some platforms.
const defaultOllamaURL = "http://127.0.0.1:11434"

// keepAliveResident and keepAliveEvict are the keep_alive values Ollama
// interprets as "stay resident indefinitely" and "evict now".
var (
	keepAliveResident = -1
	keepAliveEvict    = 0
)

// OllamaAdapter drives one model on a local Ollama daemon. Load issues a
// warm-up request pinning the model in memory; Unload asks the daemon to
// evict it, which is what keeps the single-active-model guarantee meaningful
// for this backend.
type OllamaAdapter struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	Stream    bool           `json:"stream"`
	Options   *ollamaOptions `json:"options,omitempty"`
	KeepAlive *int           `json:"keep_alive,omitempty"`
}

// ollamaOptions mirrors the subset of Ollama generation options the core
// exposes.
type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
}

// ollamaGenerateResponse is the /api/generate response body.
type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaAdapter creates an adapter for a single Ollama model. An empty
// baseURL falls back to the local daemon address.
func NewOllamaAdapter(model, baseURL string) (*OllamaAdapter, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	return &OllamaAdapter{
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Model returns the Ollama model tag this adapter drives.
func (a *OllamaAdapter) Model() string {
	return a.model
}

// Generate sends a prompt to the model and returns the completion text.
func (a *OllamaAdapter) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	o := opts.withDefaults()
	resp, err := a.generate(ctx, ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: false,
		Options: &ollamaOptions{
			NumPredict:  o.MaxTokens,
			Temperature: o.Temperature,
			Stop:        o.Stop,
			Seed:        o.Seed,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Load pins the model into the daemon's memory with an empty warm-up request.
func (a *OllamaAdapter) Load(ctx context.Context) error {
	_, err := a.generate(ctx, ollamaGenerateRequest{
		Model:     a.model,
		Stream:    false,
		KeepAlive: &keepAliveResident,
	})
	if err != nil {
		return fmt.Errorf("warm up %q: %w", a.model, err)
	}
	return nil
}

// Unload asks the daemon to evict the model from memory.
func (a *OllamaAdapter) Unload(ctx context.Context) error {
	_, err := a.generate(ctx, ollamaGenerateRequest{
		Model:     a.model,
		Stream:    false,
		KeepAlive: &keepAliveEvict,
	})
	if err != nil {
		return fmt.Errorf("evict %q: %w", a.model, err)
	}
	return nil
}

// CheckRunning verifies that the Ollama daemon is reachable.
func (a *OllamaAdapter) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &AdapterError{Temporary: true, Err: fmt.Errorf("ollama not reachable at %s: %w", a.baseURL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status from ollama: %s", resp.Status)}
	}
	return nil
}

func (a *OllamaAdapter) generate(ctx context.Context, reqBody ollamaGenerateRequest) (*ollamaGenerateResponse, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &AdapterError{Temporary: true, Err: fmt.Errorf("ollama request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("ollama model %q: %w", a.model, ErrModelNotFound)}
	}
	if genResp.Error != "" {
		return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("ollama error: %s", genResp.Error)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AdapterError{Status: resp.StatusCode, Err: fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))}
	}

	return &genResp, nil
}
