package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/metrics"
)

// Status is the lifecycle state of a registry entry.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusLoaded     Status = "loaded"
	StatusUnloaded   Status = "unloaded"
)

// Registry misuse errors. These indicate a wiring bug in the caller and are
// surfaced loudly rather than masked.
var (
	ErrAlreadyRegistered = errors.New("model already registered")
	ErrNotRegistered     = errors.New("model not registered")
)

// Entry is a point-in-time snapshot of one registry entry.
type Entry struct {
	Name         string    `json:"name"`
	Backend      string    `json:"backend"`
	Status       Status    `json:"status"`
	LoadCount    int       `json:"load_count"`
	LastLoadedAt time.Time `json:"last_loaded_at"`
}

// Transition records one lifecycle event for the load history.
type Transition struct {
	Name    string    `json:"name"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

// Transition outcomes.
const (
	OutcomeLoaded        = "loaded"
	OutcomeUnloaded      = "unloaded"
	OutcomeLoadFailed    = "load_failed"
	OutcomeRestored      = "restored"
	OutcomeRestoreFailed = "restore_failed"
)

type entry struct {
	name         string
	adapter      adapter.Adapter
	status       Status
	loadCount    int
	lastLoadedAt time.Time
}

// Manager owns the model registry and guarantees that at most one entry is
// loaded at any observable instant. All transitions run under a single
// mutex, so concurrent Load calls queue rather than interleave.
type Manager struct {
	mu           sync.Mutex
	entries      map[string]*entry
	order        []string
	active       string
	history      []Transition
	historyLimit int
	log          zerolog.Logger
	now          func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithClock overrides the time source used for last_loaded_at stamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithHistoryLimit bounds the in-memory load history.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// NewManager creates an empty registry. Construct one at process start and
// pass it by reference; the registry is the process-wide owner of model
// residency.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		entries:      make(map[string]*entry),
		historyLimit: 64,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register inserts a model under name in the registered state.
func (m *Manager) Register(name string, a adapter.Adapter) error {
	if name == "" {
		return fmt.Errorf("register: model name must not be empty")
	}
	if a == nil {
		return fmt.Errorf("register %q: adapter must not be nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrAlreadyRegistered)
	}

	m.entries[name] = &entry{name: name, adapter: a, status: StatusRegistered}
	m.order = append(m.order, name)
	m.log.Debug().Str("model", name).Str("backend", a.Name()).Msg("model registered")
	return nil
}

// Load makes name the single loaded model, unloading the current one first.
// Re-loading the already-loaded model is a no-op returning the existing
// handle. On failure the previously loaded model is restored; if restoring
// also fails the registry is left with nothing loaded and the error reports
// both failures.
func (m *Manager) Load(ctx context.Context, name string) (adapter.Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("load %q: %w", name, ErrNotRegistered)
	}
	if m.active == name {
		return e.adapter, nil
	}

	var prev *entry
	if m.active != "" {
		prev = m.entries[m.active]
		m.releaseLocked(ctx, prev)
	}

	if err := e.adapter.Load(ctx); err != nil {
		m.recordLocked(name, OutcomeLoadFailed)
		m.log.Error().Err(err).Str("model", name).Msg("model load failed")
		if prev == nil {
			return nil, fmt.Errorf("load %q: %w", name, err)
		}
		if rerr := prev.adapter.Load(ctx); rerr != nil {
			m.recordLocked(prev.name, OutcomeRestoreFailed)
			m.log.Error().Err(rerr).Str("model", prev.name).Msg("restore of previous model failed")
			return nil, fmt.Errorf("load %q: %w (restore of %q also failed: %v)", name, err, prev.name, rerr)
		}
		m.markLoadedLocked(prev)
		m.recordLocked(prev.name, OutcomeRestored)
		m.log.Warn().Str("model", prev.name).Msg("previous model restored after failed load")
		return nil, fmt.Errorf("load %q: %w (previous model %q restored)", name, err, prev.name)
	}

	m.markLoadedLocked(e)
	m.recordLocked(name, OutcomeLoaded)
	metrics.ObserveModelLoad(name)
	if prev != nil {
		metrics.ObserveModelSwitch()
	}
	m.log.Info().Str("model", name).Int("load_count", e.loadCount).Msg("model loaded")
	return e.adapter, nil
}

// Unload transitions name from loaded to unloaded. It is a no-op if the
// entry is not currently loaded. The release hook is best-effort: a hook
// failure is logged and the entry is still marked unloaded.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("unload %q: %w", name, ErrNotRegistered)
	}
	if m.active != name {
		return nil
	}

	m.releaseLocked(ctx, e)
	return nil
}

// UnloadAll releases whatever is loaded. Shutdown point.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == "" {
		return
	}
	m.releaseLocked(ctx, m.entries[m.active])
}

// Status returns the lifecycle state of one entry.
func (m *Manager) Status(name string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return "", fmt.Errorf("status %q: %w", name, ErrNotRegistered)
	}
	return e.status, nil
}

// AllStatuses returns the lifecycle state of every entry.
func (m *Manager) AllStatuses() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make(map[string]Status, len(m.entries))
	for name, e := range m.entries {
		statuses[name] = e.status
	}
	return statuses
}

// Entries returns snapshots of every entry in registration order.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, 0, len(m.order))
	for _, name := range m.order {
		e := m.entries[name]
		entries = append(entries, Entry{
			Name:         e.name,
			Backend:      e.adapter.Name(),
			Status:       e.status,
			LoadCount:    e.loadCount,
			LastLoadedAt: e.lastLoadedAt,
		})
	}
	return entries
}

// Active returns the name of the loaded model, if any.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}

// Registered returns every registered model name in registration order.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// LoadHistory returns a copy of the recorded lifecycle transitions,
// oldest first.
func (m *Manager) LoadHistory() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]Transition, len(m.history))
	copy(history, m.history)
	return history
}

// releaseLocked unloads e and marks it unloaded. Callers hold m.mu.
func (m *Manager) releaseLocked(ctx context.Context, e *entry) {
	if err := e.adapter.Unload(ctx); err != nil {
		m.log.Warn().Err(err).Str("model", e.name).Msg("release hook failed")
	}
	e.status = StatusUnloaded
	if m.active == e.name {
		m.active = ""
	}
	m.recordLocked(e.name, OutcomeUnloaded)
	m.log.Info().Str("model", e.name).Msg("model unloaded")
}

// markLoadedLocked transitions e to loaded. Callers hold m.mu.
func (m *Manager) markLoadedLocked(e *entry) {
	e.status = StatusLoaded
	e.loadCount++
	e.lastLoadedAt = m.now()
	m.active = e.name
}

// recordLocked appends a transition, keeping the history bounded.
// Callers hold m.mu.
func (m *Manager) recordLocked(name, outcome string) {
	m.history = append(m.history, Transition{Name: name, Outcome: outcome, At: m.now()})
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}
