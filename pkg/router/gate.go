package router

import "github.com/zen-systems/modelgate/pkg/config"

// Gate is the confidence escalation gate between the heuristic layer and
// the meta-router.
type Gate struct {
	threshold float64
}

// NewGate creates a gate using the configured confidence threshold.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{threshold: cfg.ConfidenceThreshold}
}

// Accept reports whether the decision stands without escalation. The
// boundary is inclusive: confidence exactly at the threshold passes.
// Explicit decisions always pass.
func (g *Gate) Accept(d Decision) bool {
	if d.Source == SourceExplicit {
		return true
	}
	return d.Confidence >= g.threshold
}
