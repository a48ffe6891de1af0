package state

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Subscriber is informed of (action, new state) after a transition commits.
// Subscriber failures are isolated: a panicking subscriber is recovered and
// reported, never rethrown into the dispatch path.
type Subscriber func(action Action, newState *ConversationState)

// Manager serializes all state changes for one conversation through a single
// pipeline: action -> middleware chain -> reducer -> commit -> notification.
type Manager struct {
	mu          sync.Mutex
	current     *ConversationState
	reducer     Reducer
	middleware  []Middleware
	subscribers map[int]Subscriber
	nextSubID   int

	// history holds the state prior to each successful transition, oldest
	// first. Unbounded by default; callers needing bounded memory set a
	// limit via WithHistoryLimit.
	history      []*ConversationState
	historyLimit int

	logger *log.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithReducer replaces the default reducer
func WithReducer(r Reducer) ManagerOption {
	return func(m *Manager) { m.reducer = r }
}

// WithMiddleware appends middleware to the chain; middleware run in
// registration order.
func WithMiddleware(mw ...Middleware) ManagerOption {
	return func(m *Manager) { m.middleware = append(m.middleware, mw...) }
}

// WithHistoryLimit caps retained history; the oldest entries are dropped
// first. Zero means unbounded.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) { m.historyLimit = n }
}

// WithLogger sets the logger used to report subscriber failures
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager for the given initial state
func NewManager(initial *ConversationState, opts ...ManagerOption) *Manager {
	m := &Manager{
		current:     initial,
		reducer:     Reduce,
		subscribers: make(map[int]Subscriber),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state snapshot
func (m *Manager) State() *ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers a subscriber and returns an unsubscribe function
func (m *Manager) Subscribe(sub Subscriber) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = sub
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Dispatch processes one action through the middleware chain and reducer.
// A vetoed or rejected action leaves the current state unchanged and is
// returned alongside the (unchanged) state. On success the new state is
// committed, the prior state is pushed onto history, and subscribers are
// notified after the commit.
func (m *Manager) Dispatch(ctx context.Context, action Action) (*ConversationState, error) {
	m.mu.Lock()

	act := action
	for _, mw := range m.middleware {
		next, err := mw(ctx, act, m.current)
		if err != nil {
			current := m.current
			m.mu.Unlock()
			return current, fmt.Errorf("state: %w: %v", ErrActionVetoed, err)
		}
		if next == nil {
			current := m.current
			m.mu.Unlock()
			return current, fmt.Errorf("state: %w: %s", ErrActionVetoed, act.Kind())
		}
		act = next
	}

	next, err := m.reducer(m.current, act)
	if err != nil {
		current := m.current
		m.mu.Unlock()
		return current, err
	}

	prev := m.current
	m.current = next
	m.history = append(m.history, prev)
	if m.historyLimit > 0 && len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}

	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	// Notified outside the lock so a subscriber may itself dispatch
	// (e.g. automatic compaction) without deadlocking.
	for _, sub := range subs {
		m.notify(sub, act, next)
	}

	return next, nil
}

// notify invokes one subscriber, isolating panics from the dispatch path
func (m *Manager) notify(sub Subscriber, action Action, newState *ConversationState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("[ConvoPG] subscriber panic during %s: %v", action.Kind(), r)
		}
	}()
	sub(action, newState)
}

// History returns a copy of the retained pre-transition states, oldest first
func (m *Manager) History() []*ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ConversationState, len(m.history))
	copy(out, m.history)
	return out
}

// HistoryLen returns the number of retained pre-transition states
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}
