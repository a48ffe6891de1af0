package compaction

import (
	"context"
	"sync"

	"github.com/stateloop/convopg/state"
)

// Manager monitors a conversation's context window and shrinks it when it
// grows too large. One manager serves one conversation.
//
// While a compaction runs the conversation is in a transient compacting
// phase; it always returns to active, on success with the new state and on
// failure with the prior state unchanged.
type Manager struct {
	cfg       Config
	compactor *Compactor

	mu         sync.Mutex
	compacting bool
}

// NewManager creates a manager with the given collaborators and policy
func NewManager(summarizer Summarizer, counter TokenCounter, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		compactor: NewCompactor(summarizer, counter, cfg),
	}, nil
}

// Config returns the manager's policy
func (m *Manager) Config() Config {
	return m.cfg
}

// ShouldCompact reports whether the state's window warrants compaction:
// utilization at or past the trigger threshold AND consumed tokens at or
// past the minimum floor. Below the floor compaction is skipped even when
// the ratio is nominally exceeded.
func (m *Manager) ShouldCompact(s *state.ConversationState) bool {
	consumed := s.Window.Consumed()
	if consumed < m.cfg.MinCompactionTokens {
		return false
	}
	return s.Window.Utilization() >= m.cfg.TriggerThreshold
}

// SelectStrategy chooses the compaction strategy for the given state
func (m *Manager) SelectStrategy(s *state.ConversationState) Strategy {
	return SelectStrategy(Analyze(s.Messages, m.cfg.PreserveLastN), m.cfg)
}

// Compacting reports whether a compaction is currently in flight
func (m *Manager) Compacting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compacting
}

// MaybeCompact compacts through the state manager if the window warrants it.
// Returns (nil, nil) when compaction is not needed, so periodic callers can
// invoke it unconditionally.
func (m *Manager) MaybeCompact(ctx context.Context, states *state.Manager) (*Result, error) {
	if !m.ShouldCompact(states.State()) {
		return nil, nil
	}
	return m.Compact(ctx, states)
}

// Compact performs a compaction cycle: snapshot the current state, run the
// compactor, and dispatch the compacted sequence through the state manager.
// If the summarizer fails, the state is left untouched and the caller
// receives a distinguishable error; no partial result is ever applied.
func (m *Manager) Compact(ctx context.Context, states *state.Manager) (*Result, error) {
	m.mu.Lock()
	if m.compacting {
		m.mu.Unlock()
		return nil, ErrCompactionInProgress
	}
	m.compacting = true
	m.mu.Unlock()

	// Whatever happens below, the conversation never stays stuck compacting.
	defer func() {
		m.mu.Lock()
		m.compacting = false
		m.mu.Unlock()
	}()

	snapshot := states.State()
	if !m.ShouldCompact(snapshot) {
		return nil, ErrCompactionNotNeeded
	}

	strategy := m.SelectStrategy(snapshot)
	targetTokens := int(m.cfg.TargetUtilization * float64(snapshot.Window.MaxTokens))

	result, err := m.compactor.Compact(ctx, snapshot.Messages, strategy, targetTokens, "")
	if err != nil {
		return nil, err
	}

	// BasisLen lets the reducer re-append anything committed while the
	// summarizer ran; nothing that arrived mid-compaction is lost.
	if _, err := states.Dispatch(ctx, state.ApplyCompaction{
		Summary:   result.Summary,
		Preserved: result.Preserved,
		BasisLen:  len(snapshot.Messages),
	}); err != nil {
		return nil, NewError("Compact", err).
			WithSession(snapshot.SessionID).
			WithContext("stage", "apply")
	}

	return result, nil
}

// Stats describes a conversation's compaction posture
type Stats struct {
	CurrentTokens  int
	MaxTokens      int
	UtilizationPct float64
	MessageCount   int
	ShouldCompact  bool
}

// StatsFor returns compaction statistics for the given state
func (m *Manager) StatsFor(s *state.ConversationState) Stats {
	return Stats{
		CurrentTokens:  s.Window.Consumed(),
		MaxTokens:      s.Window.MaxTokens,
		UtilizationPct: s.Window.Utilization() * 100,
		MessageCount:   s.MessageCount(),
		ShouldCompact:  m.ShouldCompact(s),
	}
}
