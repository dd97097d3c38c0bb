package router

import (
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// Fallback converts an escalation failure into the terminal safe decision:
// the configured default model at zero confidence. It always succeeds, so
// no pipeline condition can propagate an error out of Select.
func Fallback(cfg *config.Config, signals []signal.Signal, failure error) Decision {
	rationale := "fallback to default model"
	if failure != nil {
		rationale = failure.Error()
	}

	sigs := make([]signal.Signal, 0, len(signals)+1)
	sigs = append(sigs, signals...)
	sigs = append(sigs, signal.Default)

	return newDecision(cfg.DefaultModel, 0.0, SourceFallback, sigs, rationale)
}
