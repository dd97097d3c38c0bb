package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests. It
// tracks lifecycle transitions so tests can assert on load/unload behavior.
type MockAdapter struct {
	// LoadErr and GenerateErr, when set, are returned by Load and Generate.
	LoadErr     error
	GenerateErr error

	mu              sync.Mutex
	name            string
	responses       map[string]string
	defaultResponse string
	generateFn      func(ctx context.Context, prompt string) (string, error)
	loaded          bool
	loadCalls       int
	unloadCalls     int
	generateCalls   int
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter(name string) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{
		name:            name,
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// per-prompt responses.
func NewMockAdapterWithResponses(name string, responses map[string]string, defaultResponse string) *MockAdapter {
	a := NewMockAdapter(name)
	if responses != nil {
		a.responses = responses
	}
	if defaultResponse != "" {
		a.defaultResponse = defaultResponse
	}
	return a
}

// SetGenerateFunc scripts Generate with an arbitrary function, taking
// precedence over the response map.
func (a *MockAdapter) SetGenerateFunc(fn func(ctx context.Context, prompt string) (string, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generateFn = fn
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Generate returns a deterministic completion for the prompt.
func (a *MockAdapter) Generate(ctx context.Context, prompt string, _ *GenerateOptions) (string, error) {
	a.mu.Lock()
	a.generateCalls++
	fn := a.generateFn
	genErr := a.GenerateErr
	response, scripted := a.responses[prompt]
	defaultResponse := a.defaultResponse
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if genErr != nil {
		return "", genErr
	}
	if scripted {
		return response, nil
	}
	return fmt.Sprintf("%s\n%s", defaultResponse, prompt), nil
}

// Load marks the mock as resident, or fails with LoadErr if set.
func (a *MockAdapter) Load(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadCalls++
	if a.LoadErr != nil {
		return a.LoadErr
	}
	a.loaded = true
	return nil
}

// Unload marks the mock as not resident.
func (a *MockAdapter) Unload(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unloadCalls++
	a.loaded = false
	return nil
}

// Loaded reports whether the mock is currently resident.
func (a *MockAdapter) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// LoadCalls returns how many times Load was invoked.
func (a *MockAdapter) LoadCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadCalls
}

// UnloadCalls returns how many times Unload was invoked.
func (a *MockAdapter) UnloadCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unloadCalls
}

// GenerateCalls returns how many times Generate was invoked.
func (a *MockAdapter) GenerateCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generateCalls
}
