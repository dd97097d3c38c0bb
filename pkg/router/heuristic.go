package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// hintScore is the override score assigned to an explicitly hinted model.
const hintScore = 10.0

// Scores maps candidate-model names to accumulated heuristic scores.
type Scores map[string]float64

// Ranked returns the model names ordered by descending score with a
// lexical tie-break, so equal scores always resolve the same way.
func (s Scores) Ranked() []string {
	models := make([]string, 0, len(s))
	for model := range s {
		models = append(models, model)
	}
	sort.SliceStable(models, func(i, j int) bool {
		if s[models[i]] == s[models[j]] {
			return models[i] < models[j]
		}
		return s[models[i]] > s[models[j]]
	})
	return models
}

// Top returns the winning model and its score.
func (s Scores) Top() (string, float64) {
	ranked := s.Ranked()
	if len(ranked) == 0 {
		return "", 0
	}
	return ranked[0], s[ranked[0]]
}

// Confidence converts the score spread into [0,1]: the margin between the
// top two scores normalized by the top score. Equal top scores yield 0,
// which forces escalation.
func (s Scores) Confidence() float64 {
	ranked := s.Ranked()
	if len(ranked) == 0 {
		return 0
	}

	top := s[ranked[0]]
	if top <= 0 {
		return 0
	}
	second := 0.0
	if len(ranked) > 1 {
		second = s[ranked[1]]
	}

	confidence := (top - second) / top
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// Evaluation is the deterministic result of one heuristic pass.
type Evaluation struct {
	Scores   Scores
	Signals  *signal.Set
	Explicit bool
	Marker   string
	Hinted   string
}

// Heuristic is the first pipeline layer: it scores every candidate model
// from lexical and structural evidence in the request text. It performs
// no I/O and touches no shared mutable state.
type Heuristic struct {
	cfg *config.Config
}

// NewHeuristic creates a heuristic router over the configured candidates.
func NewHeuristic(cfg *config.Config) *Heuristic {
	return &Heuristic{cfg: cfg}
}

// Evaluate runs hint detection, task classification, complexity
// estimation, and domain rules over text. Identical input always yields
// an identical Evaluation.
func (h *Heuristic) Evaluate(text string) Evaluation {
	lowered := strings.ToLower(text)

	// Explicit hints override everything.
	if model, marker, ok := findHint(lowered, h.cfg); ok {
		return Evaluation{
			Scores:   Scores{model: hintScore},
			Signals:  signal.NewSet(signal.ExplicitHint),
			Explicit: true,
			Marker:   marker,
			Hinted:   model,
		}
	}

	set := signal.NewSet()
	for _, sig := range classifyTask(lowered) {
		set.Add(sig)
	}
	for _, sig := range estimateComplexity(text, lowered) {
		set.Add(sig)
	}
	for _, sig := range domainRules(lowered) {
		set.Add(sig)
	}

	scores := make(Scores, len(h.cfg.CandidateModels))
	for _, profile := range h.cfg.CandidateModels {
		total := 0.0
		for _, sig := range set.Signals() {
			total += h.cfg.SignalWeights.Get(sig) * profile.Bias[sig]
		}
		scores[profile.Name] = total
	}

	return Evaluation{Scores: scores, Signals: set}
}

// Score produces the layer-one routing decision for text.
func (h *Heuristic) Score(text string) Decision {
	return h.decide(h.Evaluate(text))
}

func (h *Heuristic) decide(eval Evaluation) Decision {
	if eval.Explicit {
		rationale := fmt.Sprintf("explicit hint %s", eval.Marker)
		return newDecision(eval.Hinted, 1.0, SourceExplicit, eval.Signals.Signals(), rationale)
	}

	model, top := eval.Scores.Top()
	confidence := eval.Scores.Confidence()
	rationale := fmt.Sprintf("top score %.2f for %s from %d signals", top, model, eval.Signals.Len())
	return newDecision(model, confidence, SourceHeuristic, eval.Signals.Signals(), rationale)
}
