package state

import (
	"github.com/stateloop/convopg/types"
)

// ContextWindow tracks token accounting for one conversation.
// It is a value type: Add and Recompute return new windows.
type ContextWindow struct {
	// MaxTokens is the configured context window size
	MaxTokens int `json:"max_tokens"`

	// Per-category running totals
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	ToolOverheadTokens  int `json:"tool_overhead_tokens"`
}

// NewContextWindow creates an empty window with the given maximum
func NewContextWindow(maxTokens int) ContextWindow {
	return ContextWindow{MaxTokens: maxTokens}
}

// Consumed returns the total tokens consumed across all categories
func (w ContextWindow) Consumed() int {
	return w.InputTokens + w.OutputTokens + w.CacheCreationTokens + w.CacheReadTokens + w.ToolOverheadTokens
}

// Remaining returns the tokens left before the window is exhausted
func (w ContextWindow) Remaining() int {
	remaining := w.MaxTokens - w.Consumed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Utilization returns consumed/maximum, or 0 when no maximum is configured
func (w ContextWindow) Utilization() float64 {
	if w.MaxTokens <= 0 {
		return 0
	}
	return float64(w.Consumed()) / float64(w.MaxTokens)
}

// Add returns a new window with the usage added to its category totals
func (w ContextWindow) Add(u types.Usage) ContextWindow {
	w.InputTokens += u.InputTokens
	w.OutputTokens += u.OutputTokens
	w.CacheCreationTokens += u.CacheCreationTokens
	w.CacheReadTokens += u.CacheReadTokens
	w.ToolOverheadTokens += u.ToolOverheadTokens
	return w
}

// Recompute returns a window rebuilt from the message sequence, keeping the
// configured maximum. Totals are derived from message usage and never drift.
func (w ContextWindow) Recompute(messages []*types.Message) ContextWindow {
	next := NewContextWindow(w.MaxTokens)
	for _, msg := range messages {
		next = next.Add(msg.Usage)
	}
	return next
}

// WithMaxTokens returns a window with a new maximum, preserving totals
func (w ContextWindow) WithMaxTokens(maxTokens int) ContextWindow {
	w.MaxTokens = maxTokens
	return w
}
