package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/metrics"
)

// Escalation failure stages, recorded on EscalationError.
const (
	StageTransport  = "transport"
	StageParse      = "parse"
	StageValidation = "validation"
)

// EscalationError reports a failed meta-routing attempt. It is always
// recovered into a fallback decision inside the selector, never surfaced
// to its callers.
type EscalationError struct {
	Stage string
	Err   error
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("escalation %s failure: %v", e.Stage, e.Err)
}

func (e *EscalationError) Unwrap() error {
	return e.Err
}

// routingReply is the JSON verdict expected from the router model. The
// confidence is a pointer so a missing field is distinguishable from 0.
type routingReply struct {
	Model      string   `json:"model"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// MetaRouter escalates ambiguous requests to a designated secondary model
// that replies with a structured routing verdict. The router model is
// never itself a routing candidate, so an escalation can never select the
// model doing the routing.
type MetaRouter struct {
	adapter adapter.Adapter
	cfg     *config.Config
	log     zerolog.Logger
}

// MetaOption configures a MetaRouter.
type MetaOption func(*MetaRouter)

// WithMetaLogger sets the meta-router's logger.
func WithMetaLogger(log zerolog.Logger) MetaOption {
	return func(m *MetaRouter) {
		m.log = log
	}
}

// NewMetaRouter creates the escalation layer over the given router-model
// adapter. It refuses construction when the configured router model is
// itself a routing candidate.
func NewMetaRouter(a adapter.Adapter, cfg *config.Config, opts ...MetaOption) (*MetaRouter, error) {
	if a == nil {
		return nil, fmt.Errorf("meta router: adapter must not be nil")
	}
	if _, ok := cfg.ResolveModel(cfg.Router.Name); ok {
		return nil, fmt.Errorf("meta router: %q is a routing candidate and cannot route itself", cfg.Router.Name)
	}

	m := &MetaRouter{adapter: a, cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Escalate asks the router model to pick a candidate for text. It makes
// exactly one attempt, bounded by the configured escalation timeout; a
// timeout is an EscalationError like any other failure. The heuristic
// decision supplies the signals carried on a successful verdict.
func (m *MetaRouter) Escalate(ctx context.Context, text string, heuristic Decision) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.EscalationTimeout)
	defer cancel()

	start := time.Now()
	m.log.Debug().Str("router_model", m.cfg.Router.Name).Msg("escalating to meta router")

	raw, err := m.adapter.Generate(ctx, m.buildPrompt(text), nil)
	if err != nil {
		metrics.ObserveEscalation("transport_error", time.Since(start))
		return Decision{}, &EscalationError{Stage: StageTransport, Err: err}
	}

	reply, err := parseRoutingReply(raw)
	if err != nil {
		metrics.ObserveEscalation("parse_error", time.Since(start))
		return Decision{}, &EscalationError{Stage: StageParse, Err: err}
	}

	model, err := m.validateReply(reply)
	if err != nil {
		metrics.ObserveEscalation("invalid_reply", time.Since(start))
		return Decision{}, &EscalationError{Stage: StageValidation, Err: err}
	}

	metrics.ObserveEscalation("ok", time.Since(start))
	m.log.Debug().
		Str("model", model).
		Float64("confidence", *reply.Confidence).
		Msg("meta routing verdict")
	return newDecision(model, *reply.Confidence, SourceMeta, heuristic.Signals, reply.Reason), nil
}

// buildPrompt renders the routing prompt: candidate descriptions, the
// user request, and the exact JSON shape expected back.
func (m *MetaRouter) buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("You are a model selection router for a local agent system.\n")
	sb.WriteString("Select the single best model for the user request below.\n\n")
	sb.WriteString("Available models:\n")
	for _, profile := range m.cfg.CandidateModels {
		sb.WriteString("- ")
		sb.WriteString(profile.Name)
		if profile.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(profile.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nUser request:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nRespond ONLY with a valid JSON object, no other text:\n")
	sb.WriteString(`{"model": "<name>", "confidence": <float 0.0-1.0>, "reason": "<brief explanation>"}`)
	sb.WriteString("\n\nConfidence: 0.0-0.5 means uncertain, 0.5-0.8 means moderately confident, 0.8-1.0 means very confident.")
	return sb.String()
}

// parseRoutingReply extracts the JSON verdict from the raw model output,
// tolerating code fences and surrounding prose.
func parseRoutingReply(raw string) (*routingReply, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var reply routingReply
	if err := json.Unmarshal([]byte(content), &reply); err == nil {
		return &reply, nil
	}

	// The model may have wrapped the object in prose. Take the outermost
	// braces and try again.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("malformed JSON object in reply: %w", err)
	}
	return &reply, nil
}

// validateReply checks the verdict and returns the canonical model name.
// The candidate set excludes the router model, so a reply naming it is
// rejected here as not-a-candidate.
func (m *MetaRouter) validateReply(reply *routingReply) (string, error) {
	model, ok := m.cfg.ResolveModel(reply.Model)
	if !ok {
		return "", fmt.Errorf("model %q is not a routing candidate", reply.Model)
	}
	if reply.Confidence == nil {
		return "", fmt.Errorf("confidence missing")
	}
	if c := *reply.Confidence; c < 0 || c > 1 {
		return "", fmt.Errorf("confidence %v out of range", c)
	}
	if strings.TrimSpace(reply.Reason) == "" {
		return "", fmt.Errorf("reason missing")
	}
	return model, nil
}
