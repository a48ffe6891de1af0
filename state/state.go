// Package state implements immutable conversation state and the dispatch
// pipeline that produces new state values from actions.
//
// ConversationState is a persistent value type: every transformation returns
// a new state and leaves the receiver untouched, so holders of a prior
// reference never observe in-place edits. All writes for one conversation
// serialize through a single Manager.
package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/stateloop/convopg/types"
)

// ToolExecution describes an in-flight tool invocation
type ToolExecution struct {
	ID        string    `json:"id"`
	ToolName  string    `json:"tool_name"`
	StartedAt time.Time `json:"started_at"`
}

// ConversationState is an immutable snapshot of one conversation.
// Mutation methods return new values; the receiver is never modified.
type ConversationState struct {
	SessionID string `json:"session_id"`

	// Messages is the ordered message sequence
	Messages []*types.Message `json:"messages"`

	// Window tracks token accounting for the message sequence
	Window ContextWindow `json:"window"`

	// PendingTools maps tool_use IDs to in-flight executions
	PendingTools map[string]ToolExecution `json:"pending_tools"`

	// Preferences holds user preferences for this conversation
	Preferences map[string]string `json:"preferences"`

	// Metadata holds session metadata
	Metadata map[string]any `json:"metadata"`

	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
}

// New creates an empty conversation state with the given context window size
func New(maxTokens int) *ConversationState {
	now := time.Now()
	return &ConversationState{
		SessionID:    uuid.New().String(),
		Messages:     nil,
		Window:       NewContextWindow(maxTokens),
		PendingTools: map[string]ToolExecution{},
		Preferences:  map[string]string{},
		Metadata:     map[string]any{},
		Phase:        PhaseActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// clone returns a copy with fresh map and slice headers so the derived state
// can diverge without touching the receiver.
func (s *ConversationState) clone() *ConversationState {
	next := *s

	next.Messages = make([]*types.Message, len(s.Messages))
	copy(next.Messages, s.Messages)

	next.PendingTools = make(map[string]ToolExecution, len(s.PendingTools))
	for k, v := range s.PendingTools {
		next.PendingTools[k] = v
	}

	next.Preferences = make(map[string]string, len(s.Preferences))
	for k, v := range s.Preferences {
		next.Preferences[k] = v
	}

	next.Metadata = make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		next.Metadata[k] = v
	}

	next.UpdatedAt = time.Now()
	return &next
}

// AppendMessage returns a new state with the message appended and the
// context window extended incrementally by the message's usage.
func (s *ConversationState) AppendMessage(msg *types.Message) *ConversationState {
	next := s.clone()
	next.Messages = append(next.Messages, msg)
	next.Window = next.Window.Add(msg.Usage)
	if msg.Role == types.RoleUser {
		next.TurnCount++
	}
	return next
}

// ApplyCompaction returns a new state whose message sequence is
// [summary, preserved..., committed-after-basis...]. basisLen is the message
// count the compaction was computed against; anything appended past it since
// the snapshot survives after the preserved set. The in-flight tool map is
// reset and the context window is recomputed from the compacted sequence.
func (s *ConversationState) ApplyCompaction(summary *types.Message, preserved []*types.Message, basisLen int) *ConversationState {
	next := s.clone()

	// A basis of zero (unset) or past the end means nothing was committed
	// after the snapshot.
	if basisLen <= 0 || basisLen > len(s.Messages) {
		basisLen = len(s.Messages)
	}
	late := s.Messages[basisLen:]

	compacted := make([]*types.Message, 0, len(preserved)+len(late)+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, preserved...)
	compacted = append(compacted, late...)

	next.Messages = compacted
	next.PendingTools = map[string]ToolExecution{}
	next.Window = next.Window.Recompute(compacted)
	return next
}

// BeginTool returns a new state tracking the given execution as in-flight
func (s *ConversationState) BeginTool(exec ToolExecution) *ConversationState {
	next := s.clone()
	next.PendingTools[exec.ID] = exec
	return next
}

// CompleteTool returns a new state with the execution removed from the
// in-flight map. Completing an unknown ID is a no-op copy.
func (s *ConversationState) CompleteTool(id string) *ConversationState {
	next := s.clone()
	delete(next.PendingTools, id)
	return next
}

// WithPreferences returns a new state with the given preferences merged in
func (s *ConversationState) WithPreferences(prefs map[string]string) *ConversationState {
	next := s.clone()
	for k, v := range prefs {
		next.Preferences[k] = v
	}
	return next
}

// WithMetadata returns a new state with one metadata key set
func (s *ConversationState) WithMetadata(key string, value any) *ConversationState {
	next := s.clone()
	next.Metadata[key] = value
	return next
}

// WithPhase returns a new state in the given phase
func (s *ConversationState) WithPhase(phase Phase) *ConversationState {
	next := s.clone()
	next.Phase = phase
	return next
}

// WithMaxTokens returns a new state with the context window maximum changed
func (s *ConversationState) WithMaxTokens(maxTokens int) *ConversationState {
	next := s.clone()
	next.Window = next.Window.WithMaxTokens(maxTokens)
	return next
}

// MessageCount returns the number of messages in the sequence
func (s *ConversationState) MessageCount() int {
	return len(s.Messages)
}

// ToolInvocationCount returns the number of tool_use blocks across all messages
func (s *ConversationState) ToolInvocationCount() int {
	count := 0
	for _, msg := range s.Messages {
		count += len(msg.ToolUseIDs())
	}
	return count
}
