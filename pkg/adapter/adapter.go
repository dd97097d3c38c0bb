package adapter

import (
	"context"
)

// Adapter is the capability a model backend must provide. The routing core
// is polymorphic over this interface and never depends on a concrete backend.
type Adapter interface {
	// Generate sends a prompt to the model and returns its text completion.
	Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error)

	// Load makes the model resource-resident. Loading an already-resident
	// model must be harmless.
	Load(ctx context.Context) error

	// Unload releases the model's runtime resources. Unloading a model that
	// is not resident must be harmless.
	Unload(ctx context.Context) error

	// Name returns the backend identifier.
	Name() string
}
