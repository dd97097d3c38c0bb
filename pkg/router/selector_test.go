package router

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// tieConfig yields two candidates that score identically on small talk,
// so heuristic confidence is 0 and every select escalates when a meta
// router is wired.
func tieConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CandidateModels = []config.ModelProfile{
		{Name: "modela", Description: "deep reasoning", Bias: map[signal.Signal]float64{signal.Conversational: 1.0}},
		{Name: "modelb", Description: "fast answers", Bias: map[signal.Signal]float64{signal.Conversational: 1.0}},
	}
	cfg.DefaultModel = "modela"
	require.NoError(t, cfg.Validate())
	return cfg
}

// boundaryConfig yields heuristic confidence exactly 0.5 for small talk:
// alpha scores 1.0, beta scores 0.5.
func boundaryConfig(t *testing.T, threshold float64) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ConfidenceThreshold = threshold
	cfg.SignalWeights[signal.Conversational] = 1.0
	cfg.CandidateModels = []config.ModelProfile{
		{Name: "alpha", Description: "primary", Bias: map[signal.Signal]float64{signal.Conversational: 1.0}},
		{Name: "beta", Description: "secondary", Bias: map[signal.Signal]float64{signal.Conversational: 0.5}},
	}
	cfg.DefaultModel = "alpha"
	require.NoError(t, cfg.Validate())
	return cfg
}

// scriptedMeta wires a meta router whose backing model always replies
// with the given text. The mock is returned for call-count assertions.
func scriptedMeta(t *testing.T, cfg *config.Config, reply string) (*MetaRouter, *adapter.MockAdapter) {
	t.Helper()
	mock := adapter.NewMockAdapter("router")
	mock.SetGenerateFunc(func(_ context.Context, _ string) (string, error) {
		return reply, nil
	})
	meta, err := NewMetaRouter(mock, cfg)
	require.NoError(t, err)
	return meta, mock
}

func TestSelectExplicitHintShortCircuits(t *testing.T) {
	cfg := tieConfig(t)
	meta, mock := scriptedMeta(t, cfg, "not json")
	s := NewSelector(cfg, WithMetaRouter(meta))

	decision := s.Select(context.Background(), "@modelb please summarize")

	assert.Equal(t, "modelb", decision.Model)
	assert.Equal(t, 1.0, decision.Confidence)
	assert.Equal(t, SourceExplicit, decision.Source)
	assert.Equal(t, 0, mock.GenerateCalls(), "explicit hints must never escalate")
}

func TestSelectAcceptsAtThresholdBoundary(t *testing.T) {
	cfg := boundaryConfig(t, 0.5)
	meta, mock := scriptedMeta(t, cfg, `{"model": "beta", "confidence": 0.9, "reason": "x"}`)
	s := NewSelector(cfg, WithMetaRouter(meta))

	decision := s.Select(context.Background(), "hello there")

	assert.Equal(t, "alpha", decision.Model)
	assert.Equal(t, 0.5, decision.Confidence)
	assert.Equal(t, SourceHeuristic, decision.Source)
	assert.Equal(t, 0, mock.GenerateCalls(), "boundary confidence must be accepted, not escalated")
}

func TestSelectEscalatesJustBelowThreshold(t *testing.T) {
	cfg := boundaryConfig(t, 0.51)
	meta, mock := scriptedMeta(t, cfg, `{"model": "beta", "confidence": 0.9, "reason": "semantic pick"}`)
	s := NewSelector(cfg, WithMetaRouter(meta))

	decision := s.Select(context.Background(), "hello there")

	assert.Equal(t, "beta", decision.Model)
	assert.Equal(t, 0.9, decision.Confidence)
	assert.Equal(t, SourceMeta, decision.Source)
	assert.Equal(t, "semantic pick", decision.Rationale)
	assert.Equal(t, 1, mock.GenerateCalls())
}

func TestSelectFallsBackOnGarbageMetaReply(t *testing.T) {
	cfg := tieConfig(t)
	meta, _ := scriptedMeta(t, cfg, "not json")
	s := NewSelector(cfg, WithMetaRouter(meta))

	decision := s.Select(context.Background(), "hello there")

	assert.Equal(t, cfg.DefaultModel, decision.Model)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Equal(t, SourceFallback, decision.Source)
	assert.Contains(t, decision.Signals, signal.Default)
	assert.NotEmpty(t, decision.Rationale)
}

func TestSelectWithoutMetaRouterKeepsHeuristic(t *testing.T) {
	cfg := tieConfig(t)
	s := NewSelector(cfg)

	decision := s.Select(context.Background(), "hello there")

	assert.Equal(t, SourceHeuristic, decision.Source)
	assert.Equal(t, "modela", decision.Model)
	assert.Equal(t, 0.0, decision.Confidence)
}

func TestSelectHonorsEscalationSwitches(t *testing.T) {
	t.Run("depth zero never escalates", func(t *testing.T) {
		cfg := tieConfig(t)
		cfg.AntiRecursionDepth = 0
		meta, mock := scriptedMeta(t, cfg, `{"model": "modelb", "confidence": 0.9, "reason": "x"}`)
		s := NewSelector(cfg, WithMetaRouter(meta))

		decision := s.Select(context.Background(), "hello there")

		assert.Equal(t, SourceHeuristic, decision.Source)
		assert.Equal(t, 0, mock.GenerateCalls())
	})

	t.Run("escalation disabled", func(t *testing.T) {
		cfg := tieConfig(t)
		cfg.EnableEscalation = false
		meta, mock := scriptedMeta(t, cfg, `{"model": "modelb", "confidence": 0.9, "reason": "x"}`)
		s := NewSelector(cfg, WithMetaRouter(meta))

		decision := s.Select(context.Background(), "hello there")

		assert.Equal(t, SourceHeuristic, decision.Source)
		assert.Equal(t, 0, mock.GenerateCalls())
	})

	t.Run("depth bounds retry attempts", func(t *testing.T) {
		cfg := tieConfig(t)
		cfg.AntiRecursionDepth = 2
		meta, mock := scriptedMeta(t, cfg, "not json")
		s := NewSelector(cfg, WithMetaRouter(meta))

		decision := s.Select(context.Background(), "hello there")

		assert.Equal(t, SourceFallback, decision.Source)
		assert.Equal(t, 2, mock.GenerateCalls())
	})
}

func TestSelectDeterministicTieBreak(t *testing.T) {
	cfg := tieConfig(t)
	s := NewSelector(cfg)

	for i := 0; i < 10; i++ {
		decision := s.Select(context.Background(), "hello there")
		assert.Equal(t, "modela", decision.Model)
	}
}

func TestStatisticsAndHistoryStayConsistent(t *testing.T) {
	cfg := config.Default()
	s := NewSelector(cfg)
	ctx := context.Background()

	texts := []string{
		"good morning",
		"@hermes prove this theorem",
		"plan the rollout in steps and validate the sequence",
		"summarize the meeting",
		"@fast quick answer please",
		"why does this happen",
	}
	for _, text := range texts {
		s.Select(ctx, text)
	}

	stats := s.Statistics()
	history := s.History()

	assert.Equal(t, len(texts), stats.Total)
	assert.Len(t, history, len(texts))

	byModel := 0
	for _, n := range stats.ByModel {
		byModel += n
	}
	assert.Equal(t, len(texts), byModel)

	bySource := 0
	for _, n := range stats.BySource {
		bySource += n
	}
	assert.Equal(t, len(texts), bySource)

	sum := 0.0
	for _, d := range history {
		sum += d.Confidence
	}
	assert.InDelta(t, sum/float64(len(texts)), stats.AvgConfidence, 1e-9)

	// A dry run must leave both untouched.
	s.Explain(ctx, "explain the whole universe")
	s.Explain(ctx, "@hermes again")

	assert.Equal(t, stats, s.Statistics())
	assert.Len(t, s.History(), len(texts))
}

func TestHistoryReturnsACopy(t *testing.T) {
	s := NewSelector(config.Default())
	s.Select(context.Background(), "good morning")

	history := s.History()
	require.Len(t, history, 1)
	history[0].Model = "tampered"

	assert.NotEqual(t, "tampered", s.History()[0].Model)
}

func TestExplainTracesEscalation(t *testing.T) {
	cfg := tieConfig(t)
	meta, mock := scriptedMeta(t, cfg, `{"model": "modelb", "confidence": 0.8, "reason": "trace me"}`)
	s := NewSelector(cfg, WithMetaRouter(meta))

	explanation := s.Explain(context.Background(), "hello there")

	assert.Equal(t, 0.0, explanation.Confidence)
	assert.False(t, explanation.Accepted)
	require.NotNil(t, explanation.Escalation)
	assert.True(t, explanation.Escalation.Attempted)
	assert.True(t, explanation.Escalation.Succeeded)
	assert.Equal(t, "modelb", explanation.Decision.Model)
	assert.Equal(t, SourceMeta, explanation.Decision.Source)
	assert.Equal(t, 1, mock.GenerateCalls())
	assert.Empty(t, s.History())
	assert.Zero(t, s.Statistics().Total)
}

func TestExplainReportsFailedEscalation(t *testing.T) {
	cfg := tieConfig(t)
	meta, _ := scriptedMeta(t, cfg, "not json")
	s := NewSelector(cfg, WithMetaRouter(meta))

	explanation := s.Explain(context.Background(), "hello there")

	require.NotNil(t, explanation.Escalation)
	assert.True(t, explanation.Escalation.Attempted)
	assert.False(t, explanation.Escalation.Succeeded)
	assert.NotEmpty(t, explanation.Escalation.Error)
	assert.Equal(t, SourceFallback, explanation.Decision.Source)
	assert.Equal(t, cfg.DefaultModel, explanation.Decision.Model)
}

func TestExplainShowsScoresAndWeights(t *testing.T) {
	cfg := config.Default()
	s := NewSelector(cfg)

	explanation := s.Explain(context.Background(), "analyze this equation")

	assert.Contains(t, explanation.Signals, signal.ReasoningHeavy)
	assert.Contains(t, explanation.Signals, signal.MathDomain)
	assert.Equal(t, cfg.SignalWeights.Get(signal.ReasoningHeavy), explanation.Weights[signal.ReasoningHeavy])
	assert.Equal(t, cfg.ConfidenceThreshold, explanation.Threshold)
	assert.True(t, explanation.Accepted)
	assert.Positive(t, explanation.Scores["hermes"])
}

func TestExplainTruncatesLongInput(t *testing.T) {
	s := NewSelector(config.Default())

	long := ""
	for i := 0; i < 40; i++ {
		long += "abcdefghij "
	}
	explanation := s.Explain(context.Background(), long)

	assert.Len(t, explanation.Text, 100)
}

func TestSelectUsesDecisionCache(t *testing.T) {
	cfg := tieConfig(t)
	cfg.EnableDecisionCache = true
	require.NoError(t, cfg.Validate())

	meta, mock := scriptedMeta(t, cfg, `{"model": "modelb", "confidence": 0.8, "reason": "cached"}`)
	s := NewSelector(cfg, WithMetaRouter(meta))
	ctx := context.Background()

	first := s.Select(ctx, "hello there")
	second := s.Select(ctx, "Hello   THERE") // normalized to the same key

	assert.Equal(t, 1, mock.GenerateCalls(), "second select must come from cache")
	assert.Equal(t, first.Model, second.Model)
	assert.Equal(t, first.Source, second.Source)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, s.History(), 2)
}

func TestSelectNeverCachesFallbacks(t *testing.T) {
	cfg := tieConfig(t)
	cfg.EnableDecisionCache = true
	require.NoError(t, cfg.Validate())

	meta, mock := scriptedMeta(t, cfg, "not json")
	s := NewSelector(cfg, WithMetaRouter(meta))
	ctx := context.Background()

	s.Select(ctx, "hello there")
	s.Select(ctx, "hello there")

	assert.Equal(t, 2, mock.GenerateCalls(), "fallback decisions must not be served from cache")
}

func TestExplainBypassesDecisionCache(t *testing.T) {
	cfg := tieConfig(t)
	cfg.EnableDecisionCache = true
	require.NoError(t, cfg.Validate())

	meta, mock := scriptedMeta(t, cfg, `{"model": "modelb", "confidence": 0.8, "reason": "x"}`)
	s := NewSelector(cfg, WithMetaRouter(meta))
	ctx := context.Background()

	s.Explain(ctx, "hello there")
	s.Explain(ctx, "hello there")
	assert.Equal(t, 2, mock.GenerateCalls(), "dry runs must not read the cache")
	assert.Empty(t, s.History())

	s.Select(ctx, "hello there")
	assert.Equal(t, 3, mock.GenerateCalls(), "dry runs must not populate the cache")
}

func TestConcurrentSelects(t *testing.T) {
	cfg := config.Default()
	s := NewSelector(cfg)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.Select(ctx, "good morning")
			}
		}()
	}
	wg.Wait()

	stats := s.Statistics()
	assert.Equal(t, workers*perWorker, stats.Total)
	assert.Len(t, s.History(), workers*perWorker)
}
