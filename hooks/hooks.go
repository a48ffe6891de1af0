// Package hooks provides lifecycle observability for conversations. Hooks
// fire around dispatch, tool execution, and compaction; a hook error stops
// the remaining hooks in that trigger and surfaces to the caller.
package hooks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/types"
)

// DispatchHook is called after an action commits a new state
type DispatchHook func(ctx context.Context, action state.Action, newState *state.ConversationState) error

// BeforeMessageHook is called before a message enters the conversation
type BeforeMessageHook func(ctx context.Context, message *types.Message) error

// ToolCallHook is called when a tool invocation finishes
// Parameters: ctx, toolName, input, output, error
type ToolCallHook func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error

// BeforeCompactionHook is called before context compaction
type BeforeCompactionHook func(ctx context.Context, sessionID string) error

// AfterCompactionHook is called after context compaction
type AfterCompactionHook func(ctx context.Context, result *compaction.Result) error

// Registry holds all registered hooks
type Registry struct {
	mu               sync.RWMutex
	dispatch         []DispatchHook
	beforeMessage    []BeforeMessageHook
	toolCall         []ToolCallHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		dispatch:         []DispatchHook{},
		beforeMessage:    []BeforeMessageHook{},
		toolCall:         []ToolCallHook{},
		beforeCompaction: []BeforeCompactionHook{},
		afterCompaction:  []AfterCompactionHook{},
	}
}

// OnDispatch registers a hook to be called after each committed action
func (r *Registry) OnDispatch(hook DispatchHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch = append(r.dispatch, hook)
}

// OnBeforeMessage registers a hook to be called before a message is added
func (r *Registry) OnBeforeMessage(hook BeforeMessageHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeMessage = append(r.beforeMessage, hook)
}

// OnToolCall registers a hook to be called when a tool invocation finishes
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// OnBeforeCompaction registers a hook to be called before compaction
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerDispatch calls all registered dispatch hooks
func (r *Registry) TriggerDispatch(ctx context.Context, action state.Action, newState *state.ConversationState) error {
	r.mu.RLock()
	hooks := make([]DispatchHook, len(r.dispatch))
	copy(hooks, r.dispatch)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, action, newState); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeMessage calls all registered before-message hooks
func (r *Registry) TriggerBeforeMessage(ctx context.Context, message *types.Message) error {
	r.mu.RLock()
	hooks := make([]BeforeMessageHook, len(r.beforeMessage))
	copy(hooks, r.beforeMessage)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall calls all registered tool-call hooks
func (r *Registry) TriggerToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	r.mu.RLock()
	hooks := make([]ToolCallHook, len(r.toolCall))
	copy(hooks, r.toolCall)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if hookErr := hook(ctx, toolName, input, output, err); hookErr != nil {
			return hookErr
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all registered before-compaction hooks
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks
func (r *Registry) TriggerAfterCompaction(ctx context.Context, result *compaction.Result) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
