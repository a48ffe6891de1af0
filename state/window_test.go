package state

import (
	"testing"

	"github.com/stateloop/convopg/types"
)

func TestWindowAddIsAdditive(t *testing.T) {
	w := NewContextWindow(1000)

	w = w.Add(types.Usage{InputTokens: 100, OutputTokens: 50})
	w = w.Add(types.Usage{InputTokens: 30, ToolOverheadTokens: 20})

	if w.Consumed() != 200 {
		t.Errorf("Consumed() = %d, want 200", w.Consumed())
	}
	if w.InputTokens != 130 {
		t.Errorf("InputTokens = %d, want 130", w.InputTokens)
	}
	if w.Remaining() != 800 {
		t.Errorf("Remaining() = %d, want 800", w.Remaining())
	}
}

func TestWindowAddReturnsNewValue(t *testing.T) {
	w := NewContextWindow(1000)
	_ = w.Add(types.Usage{InputTokens: 500})

	if w.Consumed() != 0 {
		t.Errorf("Add mutated the receiver: Consumed() = %d", w.Consumed())
	}
}

func TestWindowUtilization(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		consumed types.Usage
		want     float64
	}{
		{"empty window", 1000, types.Usage{}, 0},
		{"half full", 1000, types.Usage{InputTokens: 500}, 0.5},
		{"overfull", 100, types.Usage{InputTokens: 150}, 1.5},
		{"zero maximum", 0, types.Usage{InputTokens: 50}, 0},
		{"negative maximum", -5, types.Usage{InputTokens: 50}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewContextWindow(tt.max).Add(tt.consumed)
			if got := w.Utilization(); got != tt.want {
				t.Errorf("Utilization() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowRemainingNeverNegative(t *testing.T) {
	w := NewContextWindow(100).Add(types.Usage{InputTokens: 150})
	if w.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", w.Remaining())
	}
}

func TestWindowRecompute(t *testing.T) {
	messages := []*types.Message{
		types.NewUserMessage("a").WithUsage(types.Usage{InputTokens: 10}),
		types.NewUserMessage("b").WithUsage(types.Usage{InputTokens: 20, OutputTokens: 5}),
	}

	// Start from a drifted window; Recompute must rebuild from messages.
	w := NewContextWindow(1000).Add(types.Usage{InputTokens: 999})
	w = w.Recompute(messages)

	if w.Consumed() != 35 {
		t.Errorf("Consumed() after Recompute = %d, want 35", w.Consumed())
	}
	if w.MaxTokens != 1000 {
		t.Errorf("MaxTokens after Recompute = %d, want 1000", w.MaxTokens)
	}
}
