package router

import (
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/modelgate/pkg/signal"
)

// Source identifies which pipeline layer produced a decision.
type Source string

const (
	// SourceExplicit marks a decision forced by an @model hint.
	SourceExplicit Source = "explicit"

	// SourceHeuristic marks a decision from lexical scoring.
	SourceHeuristic Source = "heuristic"

	// SourceMeta marks a decision from the secondary routing model.
	SourceMeta Source = "meta"

	// SourceFallback marks the terminal recovery decision.
	SourceFallback Source = "fallback"
)

// Decision is the output of the selection pipeline: the chosen model, the
// confidence behind the choice, and its provenance. It is immutable once
// constructed and is the sole artifact passed between layers and returned
// to callers.
type Decision struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Confidence float64         `json:"confidence"`
	Source     Source          `json:"source"`
	Signals    []signal.Signal `json:"signals,omitempty"`
	Rationale  string          `json:"rationale,omitempty"`
	DecidedAt  time.Time       `json:"decided_at"`
}

func newDecision(model string, confidence float64, source Source, signals []signal.Signal, rationale string) Decision {
	return Decision{
		ID:         uuid.NewString(),
		Model:      model,
		Confidence: confidence,
		Source:     source,
		Signals:    signals,
		Rationale:  rationale,
		DecidedAt:  time.Now(),
	}
}
