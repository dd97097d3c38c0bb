package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/modelgate/pkg/signal"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.70, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.EscalationTimeout)
	assert.Equal(t, 1, cfg.AntiRecursionDepth)
	assert.Equal(t, "mistral", cfg.DefaultModel)
	assert.Equal(t, []string{"hermes", "mistral"}, cfg.CandidateNames())
	assert.True(t, cfg.EnableEscalation)
	assert.False(t, cfg.EnableDecisionCache)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"threshold negative", func(c *Config) { c.ConfidenceThreshold = -0.1 }, "confidence_threshold"},
		{"zero timeout", func(c *Config) { c.EscalationTimeout = 0 }, "escalation_timeout"},
		{"negative depth", func(c *Config) { c.AntiRecursionDepth = -1 }, "anti_recursion_depth"},
		{"no candidates", func(c *Config) { c.CandidateModels = nil }, "candidate_models"},
		{"negative weight", func(c *Config) { c.SignalWeights[signal.Coding] = -0.5 }, "signal_weights"},
		{"duplicate candidate", func(c *Config) {
			c.CandidateModels = append(c.CandidateModels, ModelProfile{Name: "hermes"})
		}, "candidate_models"},
		{"alias collides with candidate", func(c *Config) {
			c.CandidateModels[0].Aliases = append(c.CandidateModels[0].Aliases, "mistral")
		}, "candidate_models"},
		{"bias out of range", func(c *Config) {
			c.CandidateModels[0].Bias[signal.Coding] = 1.5
		}, "candidate_models"},
		{"default not a candidate", func(c *Config) { c.DefaultModel = "phi" }, "default_model"},
		{"router is a candidate", func(c *Config) { c.Router.Name = "hermes" }, "router_model"},
		{"router is an alias", func(c *Config) { c.Router.Name = "fast" }, "router_model"},
		{"cache ttl", func(c *Config) { c.EnableDecisionCache = true; c.CacheTTL = 0 }, "cache_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBoundaryThresholdValuesAreValid(t *testing.T) {
	for _, v := range []float64{0, 1} {
		cfg := Default()
		cfg.ConfidenceThreshold = v
		assert.NoError(t, cfg.Validate())
	}
}

func TestLoadFile(t *testing.T) {
	content := `
confidence_threshold: 0.85
escalation_timeout: 10s
default_model: phi
anti_recursion_depth: 2
enable_decision_cache: true
cache_ttl: 1m
cache_size: 16
signal_weights:
  coding: 0.9
candidate_models:
  - name: Phi
    backend: ollama
    backend_model: phi3:mini
    aliases: [Tiny]
    bias:
      coding: 1.0
  - name: qwen
    backend: ollama
    backend_model: qwen2.5-coder:7b
    bias:
      reasoning_heavy: 1.0
router_model:
  name: smollm2
  backend: ollama
  backend_model: smollm2:1.7b
backends:
  ollama_url: http://127.0.0.1:11500
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.85, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.EscalationTimeout)
	assert.Equal(t, 2, cfg.AntiRecursionDepth)
	assert.Equal(t, "phi", cfg.DefaultModel, "names are normalized to lower case")
	assert.Equal(t, []string{"phi", "qwen"}, cfg.CandidateNames())
	assert.InDelta(t, 0.9, cfg.SignalWeights.Get(signal.Coding), 1e-9)
	assert.InDelta(t, 0.8, cfg.SignalWeights.Get(signal.ReasoningHeavy), 1e-9, "unset weights keep defaults")
	assert.True(t, cfg.EnableDecisionCache)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, "http://127.0.0.1:11500", cfg.Backends.OllamaURL)

	resolved, ok := cfg.ResolveModel("tiny")
	require.True(t, ok)
	assert.Equal(t, "phi", resolved)
}

func TestLoadFileDefaultModelFallsBackToFirstCandidate(t *testing.T) {
	content := `
candidate_models:
  - name: qwen
  - name: phi
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen", cfg.DefaultModel)
}

func TestLoadFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("escalation_timeout: soon\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "escalation_timeout", verr.Field)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODELGATE_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("MODELGATE_ESCALATION_TIMEOUT", "5s")
	t.Setenv("MODELGATE_DEFAULT_MODEL", "hermes")
	t.Setenv("MODELGATE_OLLAMA_URL", "http://10.0.0.2:11434")

	cfg := Default()
	applyEnv(cfg)

	assert.InDelta(t, 0.55, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.EscalationTimeout)
	assert.Equal(t, "hermes", cfg.DefaultModel)
	assert.Equal(t, "http://10.0.0.2:11434", cfg.Backends.OllamaURL)
}

func TestResolveModel(t *testing.T) {
	cfg := Default()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"hermes", "hermes", true},
		{"HERMES", "hermes", true},
		{"deep", "hermes", true},
		{"fast", "mistral", true},
		{" mistral ", "mistral", true},
		{"smollm2", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := cfg.ResolveModel(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestHintMarkers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"@deep", "@fast", "@hermes", "@mistral"}, cfg.HintMarkers())
}
