package signal

// Signal is one discrete piece of routing evidence extracted from a request.
type Signal string

const (
	// ExplicitHint fires when the request carries an @model marker.
	ExplicitHint Signal = "explicit_hint"

	// Task classification signals.
	ReasoningHeavy Signal = "reasoning_heavy"
	Planning       Signal = "planning"
	Explanation    Signal = "explanation"
	Conversational Signal = "conversational"
	Coding         Signal = "coding"
	ToolOriented   Signal = "tool_oriented"

	// Complexity indicators.
	ComplexLogic    Signal = "complex_logic"
	MultiStep       Signal = "multi_step"
	ConstraintLogic Signal = "constraint_logic"
	LongForm        Signal = "long_form"
	CodeBlock       Signal = "code_block"

	// Domain rules.
	MathDomain Signal = "math_domain"

	// Default marks a decision produced without usable evidence.
	Default Signal = "default"
)

// All returns every defined signal in a stable order.
func All() []Signal {
	return []Signal{
		ExplicitHint,
		ReasoningHeavy,
		Planning,
		Explanation,
		Conversational,
		Coding,
		ToolOriented,
		ComplexLogic,
		MultiStep,
		ConstraintLogic,
		LongForm,
		CodeBlock,
		MathDomain,
		Default,
	}
}

// Valid reports whether s is one of the defined signals.
func Valid(s Signal) bool {
	for _, known := range All() {
		if s == known {
			return true
		}
	}
	return false
}

// Weights maps signals to their scoring weight.
type Weights map[Signal]float64

// Get returns the weight for a signal, or 0 if none is configured.
func (w Weights) Get(s Signal) float64 {
	if w == nil {
		return 0
	}
	return w[s]
}

// Set collects the signals fired while evaluating one request.
// Insertion order is preserved and duplicates are ignored.
type Set struct {
	items []Signal
}

// NewSet creates a set containing the given signals.
func NewSet(signals ...Signal) *Set {
	s := &Set{}
	for _, sig := range signals {
		s.Add(sig)
	}
	return s
}

// Add inserts a signal, ignoring duplicates.
func (s *Set) Add(sig Signal) {
	if s.Has(sig) {
		return
	}
	s.items = append(s.items, sig)
}

// Has reports whether the signal is present.
func (s *Set) Has(sig Signal) bool {
	if s == nil {
		return false
	}
	for _, item := range s.items {
		if item == sig {
			return true
		}
	}
	return false
}

// Len returns the number of signals collected.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Signals returns a copy of the collected signals in insertion order.
func (s *Set) Signals() []Signal {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	out := make([]Signal, len(s.items))
	copy(out, s.items)
	return out
}

// WeightedSum returns the sum of the weights of the collected signals.
func (s *Set) WeightedSum(w Weights) float64 {
	if s == nil {
		return 0
	}
	var total float64
	for _, item := range s.items {
		total += w.Get(item)
	}
	return total
}
