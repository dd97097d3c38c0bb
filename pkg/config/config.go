package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/modelgate/pkg/signal"
)

// Config holds the selection pipeline configuration. It is immutable after
// construction: validate once, then share by reference.
type Config struct {
	// ConfidenceThreshold is the minimum heuristic confidence accepted
	// without escalation. The boundary is inclusive.
	ConfidenceThreshold float64

	// SignalWeights maps each signal to its scoring weight.
	SignalWeights signal.Weights

	// EscalationTimeout bounds a single meta-router call.
	EscalationTimeout time.Duration

	// CandidateModels are the selectable backends, in declaration order.
	CandidateModels []ModelProfile

	// DefaultModel receives fallback decisions. Must be a candidate.
	DefaultModel string

	// Router designates the secondary routing model. It must never appear
	// among the candidates.
	Router RouterModel

	// AntiRecursionDepth caps escalation attempts per request.
	AntiRecursionDepth int

	// EnableEscalation turns the meta-router layer on or off.
	EnableEscalation bool

	// EnableDecisionCache caches final decisions per normalized input.
	EnableDecisionCache bool
	CacheTTL            time.Duration
	CacheSize           int

	Backends BackendConfig
}

// ModelProfile describes one candidate backend.
type ModelProfile struct {
	// Name is the identifier used in decisions and the runtime registry.
	Name string `yaml:"name"`

	// Backend selects the adapter implementation (mock, ollama, local,
	// anthropic, gemini).
	Backend string `yaml:"backend,omitempty"`

	// BackendModel is the backend-specific model identifier, e.g. an
	// Ollama tag.
	BackendModel string `yaml:"backend_model,omitempty"`

	// Description feeds the meta-router prompt.
	Description string `yaml:"description,omitempty"`

	// Aliases are alternative names accepted by explicit hints.
	Aliases []string `yaml:"aliases,omitempty"`

	// Bias scales each signal's weight for this model. Signals absent from
	// the map contribute nothing.
	Bias map[signal.Signal]float64 `yaml:"bias,omitempty"`
}

// RouterModel designates the secondary model used for escalation.
type RouterModel struct {
	Name         string `yaml:"name"`
	Backend      string `yaml:"backend,omitempty"`
	BackendModel string `yaml:"backend_model,omitempty"`
}

// BackendConfig holds backend connection settings.
type BackendConfig struct {
	OllamaURL       string `yaml:"ollama_url,omitempty"`
	LocalURL        string `yaml:"local_url,omitempty"`
	AnthropicAPIKey string `yaml:"-"`
	GoogleAPIKey    string `yaml:"-"`
}

// ValidationError reports an invalid configuration value. It is fatal at
// construction time; nothing recovers from it mid-pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// FileConfig is the YAML representation of Config. Pointer fields
// distinguish absent values from explicit zeros.
type FileConfig struct {
	ConfidenceThreshold *float64                  `yaml:"confidence_threshold,omitempty"`
	SignalWeights       map[signal.Signal]float64 `yaml:"signal_weights,omitempty"`
	EscalationTimeout   string                    `yaml:"escalation_timeout,omitempty"`
	CandidateModels     []ModelProfile            `yaml:"candidate_models,omitempty"`
	DefaultModel        string                    `yaml:"default_model,omitempty"`
	Router              *RouterModel              `yaml:"router_model,omitempty"`
	AntiRecursionDepth  *int                      `yaml:"anti_recursion_depth,omitempty"`
	EnableEscalation    *bool                     `yaml:"enable_escalation,omitempty"`
	EnableDecisionCache bool                      `yaml:"enable_decision_cache,omitempty"`
	CacheTTL            string                    `yaml:"cache_ttl,omitempty"`
	CacheSize           int                       `yaml:"cache_size,omitempty"`
	Backends            BackendConfig             `yaml:"backends,omitempty"`
}

// Load reads configuration from ~/.modelgate/config.yaml if present,
// otherwise returns defaults. Environment variables take precedence over
// file values.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		applyEnv(cfg)
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from a specific YAML file, backfills
// defaults, and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg, err := fromFileConfig(&fc)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func fromFileConfig(fc *FileConfig) (*Config, error) {
	cfg := Default()

	if fc.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *fc.ConfidenceThreshold
	}
	for sig, weight := range fc.SignalWeights {
		cfg.SignalWeights[sig] = weight
	}
	if fc.EscalationTimeout != "" {
		d, err := time.ParseDuration(fc.EscalationTimeout)
		if err != nil {
			return nil, &ValidationError{Field: "escalation_timeout", Reason: err.Error()}
		}
		cfg.EscalationTimeout = d
	}
	if len(fc.CandidateModels) > 0 {
		cfg.CandidateModels = fc.CandidateModels
		cfg.DefaultModel = ""
	}
	if fc.DefaultModel != "" {
		cfg.DefaultModel = fc.DefaultModel
	}
	if fc.Router != nil {
		cfg.Router = *fc.Router
	}
	if fc.AntiRecursionDepth != nil {
		cfg.AntiRecursionDepth = *fc.AntiRecursionDepth
	}
	if fc.EnableEscalation != nil {
		cfg.EnableEscalation = *fc.EnableEscalation
	}
	cfg.EnableDecisionCache = fc.EnableDecisionCache
	if fc.CacheTTL != "" {
		d, err := time.ParseDuration(fc.CacheTTL)
		if err != nil {
			return nil, &ValidationError{Field: "cache_ttl", Reason: err.Error()}
		}
		cfg.CacheTTL = d
	}
	if fc.CacheSize > 0 {
		cfg.CacheSize = fc.CacheSize
	}
	if fc.Backends.OllamaURL != "" {
		cfg.Backends.OllamaURL = fc.Backends.OllamaURL
	}
	if fc.Backends.LocalURL != "" {
		cfg.Backends.LocalURL = fc.Backends.LocalURL
	}

	applyConfigDefaults(cfg)
	return cfg, nil
}

// applyEnv layers environment overrides on top of a config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MODELGATE_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("MODELGATE_ESCALATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.EscalationTimeout = d
		}
	}
	cfg.DefaultModel = getEnvOrDefault("MODELGATE_DEFAULT_MODEL", cfg.DefaultModel)
	cfg.Backends.OllamaURL = getEnvOrDefault("MODELGATE_OLLAMA_URL", cfg.Backends.OllamaURL)
	cfg.Backends.LocalURL = getEnvOrDefault("MODELGATE_LOCAL_URL", cfg.Backends.LocalURL)
	cfg.Backends.AnthropicAPIKey = getEnvOrDefault("ANTHROPIC_API_KEY", cfg.Backends.AnthropicAPIKey)
	cfg.Backends.GoogleAPIKey = getEnvOrDefault("GOOGLE_API_KEY", cfg.Backends.GoogleAPIKey)
}

// applyConfigDefaults backfills zero values after file loading.
func applyConfigDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	for i := range cfg.CandidateModels {
		p := &cfg.CandidateModels[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		for j, alias := range p.Aliases {
			p.Aliases[j] = strings.ToLower(strings.TrimSpace(alias))
		}
	}
	cfg.Router.Name = strings.ToLower(strings.TrimSpace(cfg.Router.Name))
	if cfg.DefaultModel == "" && len(cfg.CandidateModels) > 0 {
		cfg.DefaultModel = cfg.CandidateModels[0].Name
	}
	cfg.DefaultModel = strings.ToLower(strings.TrimSpace(cfg.DefaultModel))
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
}

// Validate checks the configuration, returning a ValidationError on the
// first violation found.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ValidationError{Field: "confidence_threshold", Reason: fmt.Sprintf("must be within [0,1], got %v", c.ConfidenceThreshold)}
	}
	if c.EscalationTimeout <= 0 {
		return &ValidationError{Field: "escalation_timeout", Reason: "must be positive"}
	}
	if c.AntiRecursionDepth < 0 {
		return &ValidationError{Field: "anti_recursion_depth", Reason: "must not be negative"}
	}
	if len(c.CandidateModels) == 0 {
		return &ValidationError{Field: "candidate_models", Reason: "at least one candidate is required"}
	}

	for sig, weight := range c.SignalWeights {
		if weight < 0 {
			return &ValidationError{Field: "signal_weights", Reason: fmt.Sprintf("weight for %q must not be negative", sig)}
		}
	}

	seen := make(map[string]string)
	for _, p := range c.CandidateModels {
		if p.Name == "" {
			return &ValidationError{Field: "candidate_models", Reason: "candidate name must not be empty"}
		}
		if prev, ok := seen[p.Name]; ok {
			return &ValidationError{Field: "candidate_models", Reason: fmt.Sprintf("%q conflicts with %s", p.Name, prev)}
		}
		seen[p.Name] = fmt.Sprintf("candidate %q", p.Name)

		for _, alias := range p.Aliases {
			if prev, ok := seen[alias]; ok {
				return &ValidationError{Field: "candidate_models", Reason: fmt.Sprintf("alias %q conflicts with %s", alias, prev)}
			}
			seen[alias] = fmt.Sprintf("alias of %q", p.Name)
		}

		for sig, bias := range p.Bias {
			if bias < 0 || bias > 1 {
				return &ValidationError{Field: "candidate_models", Reason: fmt.Sprintf("%s bias for %q must be within [0,1]", p.Name, sig)}
			}
		}
	}

	if !c.IsCandidate(c.DefaultModel) {
		return &ValidationError{Field: "default_model", Reason: fmt.Sprintf("%q is not a candidate", c.DefaultModel)}
	}

	// Anti-recursion guard: the router model must never be selectable.
	if c.Router.Name != "" {
		if _, ok := seen[c.Router.Name]; ok {
			return &ValidationError{Field: "router_model", Reason: fmt.Sprintf("%q is a routing candidate; the router model must not route to itself", c.Router.Name)}
		}
	}

	if c.EnableDecisionCache {
		if c.CacheTTL <= 0 {
			return &ValidationError{Field: "cache_ttl", Reason: "must be positive when the cache is enabled"}
		}
		if c.CacheSize <= 0 {
			return &ValidationError{Field: "cache_size", Reason: "must be positive when the cache is enabled"}
		}
	}

	return nil
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".modelgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
