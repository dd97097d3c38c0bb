package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/metrics"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// Selector composes the routing layers (heuristic, gate, meta-router,
// fallback) and owns the decision history and statistics for the process
// lifetime. Neither is persisted.
type Selector struct {
	cfg       *config.Config
	heuristic *Heuristic
	gate      *Gate
	meta      *MetaRouter
	cache     *decisionCache
	log       zerolog.Logger

	mu            sync.Mutex
	history       []Decision
	byModel       map[string]int
	bySource      map[Source]int
	confidenceSum float64
	escalations   int
	fallbacks     int
}

// Statistics aggregates selection outcomes.
type Statistics struct {
	Total         int            `json:"total"`
	ByModel       map[string]int `json:"by_model"`
	BySource      map[Source]int `json:"by_source"`
	AvgConfidence float64        `json:"avg_confidence"`
	Escalations   int            `json:"escalations"`
	Fallbacks     int            `json:"fallbacks"`
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithMetaRouter wires the escalation layer. Without it, low-confidence
// heuristic decisions stand unescalated.
func WithMetaRouter(meta *MetaRouter) SelectorOption {
	return func(s *Selector) {
		s.meta = meta
	}
}

// WithSelectorLogger sets the selector's logger.
func WithSelectorLogger(log zerolog.Logger) SelectorOption {
	return func(s *Selector) {
		s.log = log
	}
}

// NewSelector creates a selector over a validated config.
func NewSelector(cfg *config.Config, opts ...SelectorOption) *Selector {
	s := &Selector{
		cfg:       cfg,
		heuristic: NewHeuristic(cfg),
		gate:      NewGate(cfg),
		log:       zerolog.Nop(),
		byModel:   make(map[string]int),
		bySource:  make(map[Source]int),
	}
	if cfg.EnableDecisionCache {
		s.cache = newDecisionCache(cfg.CacheTTL, cfg.CacheSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select runs the full routing pipeline for text and records the outcome.
// It always returns a usable decision: the worst observable case is the
// default model at confidence zero.
func (s *Selector) Select(ctx context.Context, text string) Decision {
	if s.cache != nil {
		if cached, ok := s.cache.get(text); ok {
			metrics.ObserveCacheHit()
			decision := cached
			decision.ID = uuid.NewString()
			decision.DecidedAt = time.Now()
			s.record(decision, false)
			return decision
		}
	}

	decision, escalated := s.route(ctx, text)
	if s.cache != nil {
		s.cache.put(text, decision)
	}
	s.record(decision, escalated)
	return decision
}

// route runs the layers in order (heuristic, gate, meta, fallback) and
// reports whether an escalation was attempted.
func (s *Selector) route(ctx context.Context, text string) (Decision, bool) {
	decision := s.heuristic.Score(text)
	if s.gate.Accept(decision) {
		return decision, false
	}

	if !s.canEscalate() {
		// No escalation path; the low-confidence heuristic verdict stands.
		return decision, false
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.AntiRecursionDepth; attempt++ {
		meta, err := s.meta.Escalate(ctx, text, decision)
		if err == nil {
			return meta, true
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("escalation failed")
	}
	return Fallback(s.cfg, decision.Signals, lastErr), true
}

func (s *Selector) canEscalate() bool {
	return s.meta != nil && s.cfg.EnableEscalation && s.cfg.AntiRecursionDepth > 0
}

// record appends the decision to history and folds it into the aggregate
// statistics under one lock.
func (s *Selector) record(d Decision, escalated bool) {
	s.mu.Lock()
	s.history = append(s.history, d)
	s.byModel[d.Model]++
	s.bySource[d.Source]++
	s.confidenceSum += d.Confidence
	if escalated {
		s.escalations++
	}
	if d.Source == SourceFallback {
		s.fallbacks++
	}
	s.mu.Unlock()

	metrics.ObserveDecision(d.Model, string(d.Source), d.Confidence)
	s.log.Info().
		Str("model", d.Model).
		Str("source", string(d.Source)).
		Float64("confidence", d.Confidence).
		Msg("model selected")
}

// Statistics returns a snapshot of the aggregate counters.
func (s *Selector) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		Total:       len(s.history),
		ByModel:     make(map[string]int, len(s.byModel)),
		BySource:    make(map[Source]int, len(s.bySource)),
		Escalations: s.escalations,
		Fallbacks:   s.fallbacks,
	}
	for model, n := range s.byModel {
		stats.ByModel[model] = n
	}
	for source, n := range s.bySource {
		stats.BySource[source] = n
	}
	if stats.Total > 0 {
		stats.AvgConfidence = s.confidenceSum / float64(stats.Total)
	}
	return stats
}

// History returns a copy of every recorded decision, oldest first.
func (s *Selector) History() []Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]Decision, len(s.history))
	copy(history, s.history)
	return history
}

// Explanation is the diagnostic trace of one dry pipeline run.
type Explanation struct {
	Text       string                    `json:"text"`
	Scores     Scores                    `json:"scores"`
	Signals    []signal.Signal           `json:"signals"`
	Weights    map[signal.Signal]float64 `json:"weights"`
	Threshold  float64                   `json:"threshold"`
	Confidence float64                   `json:"confidence"`
	Accepted   bool                      `json:"accepted"`
	Escalation *EscalationTrace          `json:"escalation,omitempty"`
	Decision   Decision                  `json:"decision"`
}

// EscalationTrace records the meta-routing step of a dry run.
type EscalationTrace struct {
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// Explain runs the identical pipeline as Select as a dry run: it mutates
// neither history nor statistics and bypasses the decision cache.
func (s *Selector) Explain(ctx context.Context, text string) Explanation {
	eval := s.heuristic.Evaluate(text)
	decision := s.heuristic.decide(eval)

	explanation := Explanation{
		Text:       truncate(text, 100),
		Scores:     eval.Scores,
		Signals:    eval.Signals.Signals(),
		Weights:    firedWeights(s.cfg, eval.Signals),
		Threshold:  s.cfg.ConfidenceThreshold,
		Confidence: decision.Confidence,
		Accepted:   s.gate.Accept(decision),
	}

	if explanation.Accepted || !s.canEscalate() {
		explanation.Decision = decision
		return explanation
	}

	trace := &EscalationTrace{Attempted: true}
	meta, err := s.meta.Escalate(ctx, text, decision)
	if err != nil {
		trace.Error = err.Error()
		explanation.Decision = Fallback(s.cfg, decision.Signals, err)
	} else {
		trace.Succeeded = true
		explanation.Decision = meta
	}
	explanation.Escalation = trace
	return explanation
}

func firedWeights(cfg *config.Config, set *signal.Set) map[signal.Signal]float64 {
	weights := make(map[signal.Signal]float64, set.Len())
	for _, sig := range set.Signals() {
		weights[sig] = cfg.SignalWeights.Get(sig)
	}
	return weights
}

func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}
