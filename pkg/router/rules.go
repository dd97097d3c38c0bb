package router

import (
	"regexp"
	"sort"
	"strings"

	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// Keyword tables for task classification and domain rules. Matching is
// case-insensitive with word boundaries at both ends of the keyword.
var (
	reasoningKeywords = []string{
		"why", "explain", "reason", "logic", "analyze", "think through",
		"figure out", "solve", "proof", "deduce", "validate",
	}
	planningKeywords = []string{
		"plan", "steps", "procedure", "how to", "strategy", "approach",
		"sequence", "order", "organize",
	}
	explanationKeywords = []string{
		"explain", "describe", "what is", "definition", "concept",
		"tell me about", "summarize",
	}
	codingKeywords = []string{
		"code", "program", "function", "class", "implement", "debug",
		"error", "syntax", "python", "javascript", "java",
	}
	constraintKeywords = []string{
		"if", "unless", "constraint", "condition", "must", "required",
		"forbidden", "only if",
	}
	mathKeywords = []string{"equation", "formula", "calculate", "proof", "theorem"}
	toolKeywords = []string{"search", "fetch", "retrieve", "find", "lookup"}
)

var (
	numberedStepRe = regexp.MustCompile(`\d+\.`)
	codeLineRe     = regexp.MustCompile(`(?m)(^\s{4,}\S|[{};]\s*$)`)
)

// longFormWords is the word count above which a request counts as
// long-form.
const longFormWords = 200

// classifyTask maps the lowered text to task-type signals. Text with no
// task indicator at all is conversational.
func classifyTask(lowered string) []signal.Signal {
	var signals []signal.Signal
	if containsAny(lowered, reasoningKeywords) {
		signals = append(signals, signal.ReasoningHeavy)
	}
	if containsAny(lowered, planningKeywords) {
		signals = append(signals, signal.Planning)
	}
	if containsAny(lowered, explanationKeywords) {
		signals = append(signals, signal.Explanation)
	}
	if containsAny(lowered, codingKeywords) {
		signals = append(signals, signal.Coding)
	}
	if len(signals) == 0 {
		signals = append(signals, signal.Conversational)
	}
	return signals
}

// estimateComplexity derives structural complexity signals: sequential
// steps, constraint connectives, clause stacking, sheer length, and code
// presence.
func estimateComplexity(text, lowered string) []signal.Signal {
	var signals []signal.Signal
	if numberedStepRe.MatchString(text) || strings.Count(lowered, " then ") > 1 {
		signals = append(signals, signal.MultiStep)
	}
	if containsAny(lowered, constraintKeywords) {
		signals = append(signals, signal.ConstraintLogic)
	}
	if strings.Count(lowered, " and ") > 2 {
		signals = append(signals, signal.ComplexLogic)
	}
	if len(strings.Fields(text)) > longFormWords {
		signals = append(signals, signal.LongForm)
	}
	if hasCodeBlock(text) {
		signals = append(signals, signal.CodeBlock)
	}
	return signals
}

// domainRules applies domain-specific signals on top of the task
// classification.
func domainRules(lowered string) []signal.Signal {
	var signals []signal.Signal
	if containsAny(lowered, mathKeywords) {
		signals = append(signals, signal.MathDomain)
	}
	if containsAny(lowered, toolKeywords) {
		signals = append(signals, signal.ToolOriented)
	}
	return signals
}

// hasCodeBlock reports whether the text carries a fenced block or lines
// shaped like source code.
func hasCodeBlock(text string) bool {
	if strings.Contains(text, "```") {
		return true
	}
	return codeLineRe.MatchString(text)
}

// findHint returns the candidate named by the first explicit-hint marker
// found in the lowered text. Longer markers are tried first so a name is
// not shadowed by a shorter one it starts with.
func findHint(lowered string, cfg *config.Config) (model, marker string, ok bool) {
	markers := cfg.HintMarkers()
	sort.SliceStable(markers, func(i, j int) bool {
		if len(markers[i]) == len(markers[j]) {
			return markers[i] < markers[j]
		}
		return len(markers[i]) > len(markers[j])
	})

	for _, m := range markers {
		if !containsKeyword(lowered, m) {
			continue
		}
		model, resolved := cfg.ResolveModel(strings.TrimPrefix(m, "@"))
		if !resolved {
			continue
		}
		return model, m, true
	}
	return "", "", false
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if containsKeyword(lowered, kw) {
			return true
		}
	}
	return false
}

// containsKeyword checks if the text contains the keyword or phrase as a
// word or phrase boundary match, at any position.
func containsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}

	for offset := 0; offset <= len(text)-len(keyword); {
		idx := strings.Index(text[offset:], keyword)
		if idx == -1 {
			return false
		}
		idx += offset

		// Check word boundaries on both sides of the match.
		boundedBefore := idx == 0 || !isWordChar(text[idx-1])
		endIdx := idx + len(keyword)
		boundedAfter := endIdx >= len(text) || !isWordChar(text[endIdx])
		if boundedBefore && boundedAfter {
			return true
		}
		offset = idx + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
