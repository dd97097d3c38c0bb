package adapter

const defaultMaxTokens = 4096

// GenerateOptions carries per-call generation parameters. A nil options
// value means backend defaults.
type GenerateOptions struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
}

// withDefaults returns a non-nil copy of opts with zero values backfilled.
func (o *GenerateOptions) withDefaults() GenerateOptions {
	out := GenerateOptions{}
	if o != nil {
		out = *o
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultMaxTokens
	}
	return out
}
