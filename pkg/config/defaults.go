package config

import (
	"time"

	"github.com/zen-systems/modelgate/pkg/signal"
)

const (
	defaultConfidenceThreshold = 0.70
	defaultEscalationTimeout   = 30 * time.Second
	defaultAntiRecursionDepth  = 1
	defaultCacheTTL            = 5 * time.Minute
	defaultCacheSize           = 256
)

// Default returns the stock two-model configuration: a reasoning-leaning
// model and a fast conversational model, routed by a small secondary model.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: defaultConfidenceThreshold,
		SignalWeights:       DefaultWeights(),
		EscalationTimeout:   defaultEscalationTimeout,
		CandidateModels:     DefaultCandidates(),
		DefaultModel:        "mistral",
		Router: RouterModel{
			Name:         "smollm2",
			Backend:      "ollama",
			BackendModel: "smollm2:1.7b",
		},
		AntiRecursionDepth:  defaultAntiRecursionDepth,
		EnableEscalation:    true,
		EnableDecisionCache: false,
		CacheTTL:            defaultCacheTTL,
		CacheSize:           defaultCacheSize,
		Backends: BackendConfig{
			OllamaURL: "http://127.0.0.1:11434",
			LocalURL:  "http://127.0.0.1:8080/v1",
		},
	}
}

// DefaultWeights returns the stock signal weight table.
func DefaultWeights() signal.Weights {
	return signal.Weights{
		signal.ExplicitHint:    1.0,
		signal.ReasoningHeavy:  0.8,
		signal.Planning:        0.7,
		signal.Explanation:     0.6,
		signal.Conversational:  0.3,
		signal.Coding:          0.5,
		signal.ToolOriented:    0.4,
		signal.ComplexLogic:    0.5,
		signal.MultiStep:       0.6,
		signal.ConstraintLogic: 0.7,
		signal.LongForm:        0.6,
		signal.CodeBlock:       0.5,
		signal.MathDomain:      0.7,
	}
}

// DefaultCandidates returns the stock candidate profiles. Bias values scale
// a signal's weight for that model; a signal missing from the map
// contributes nothing to it.
func DefaultCandidates() []ModelProfile {
	return []ModelProfile{
		{
			Name:         "hermes",
			Backend:      "ollama",
			BackendModel: "hermes2-pro",
			Description:  "Deep reasoning, multi-step planning, complex logical analysis, constraint solving.",
			Aliases:      []string{"deep"},
			Bias: map[signal.Signal]float64{
				signal.ReasoningHeavy:  1.0,
				signal.Planning:        1.0,
				signal.ConstraintLogic: 1.0,
				signal.ComplexLogic:    1.0,
				signal.MultiStep:       1.0,
				signal.LongForm:        1.0,
				signal.MathDomain:      1.0,
				signal.Coding:          0.7,
				signal.CodeBlock:       0.7,
			},
		},
		{
			Name:         "mistral",
			Backend:      "ollama",
			BackendModel: "mistral:7b-instruct",
			Description:  "Fast inference, direct instruction following, conversational fluency, quick answers.",
			Aliases:      []string{"fast"},
			Bias: map[signal.Signal]float64{
				signal.Explanation:    1.0,
				signal.Conversational: 1.0,
				signal.ToolOriented:   1.0,
				signal.Coding:         0.3,
				signal.CodeBlock:      0.3,
			},
		},
	}
}
