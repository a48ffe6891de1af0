package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/types"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
}

func TestOnDispatch(t *testing.T) {
	r := NewRegistry()
	var capturedKind state.Kind

	r.OnDispatch(func(ctx context.Context, action state.Action, newState *state.ConversationState) error {
		capturedKind = action.Kind()
		return nil
	})

	s := state.New(1000)
	err := r.TriggerDispatch(context.Background(), state.AddMessage{Message: types.NewUserMessage("hi")}, s)
	if err != nil {
		t.Errorf("TriggerDispatch returned error: %v", err)
	}
	if capturedKind != state.KindAddMessage {
		t.Errorf("captured kind = %q, want %q", capturedKind, state.KindAddMessage)
	}
}

func TestOnBeforeMessage(t *testing.T) {
	r := NewRegistry()
	called := false

	r.OnBeforeMessage(func(ctx context.Context, message *types.Message) error {
		called = true
		return nil
	})

	err := r.TriggerBeforeMessage(context.Background(), types.NewUserMessage("hi"))
	if err != nil {
		t.Errorf("TriggerBeforeMessage returned error: %v", err)
	}
	if !called {
		t.Error("hook was not called")
	}
}

func TestOnToolCall(t *testing.T) {
	r := NewRegistry()
	var capturedName string
	var capturedOutput string

	r.OnToolCall(func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
		capturedName = toolName
		capturedOutput = output
		return nil
	})

	err := r.TriggerToolCall(context.Background(), "search", json.RawMessage(`{}`), "results", nil)
	if err != nil {
		t.Errorf("TriggerToolCall returned error: %v", err)
	}
	if capturedName != "search" {
		t.Errorf("captured name = %q, want %q", capturedName, "search")
	}
	if capturedOutput != "results" {
		t.Errorf("captured output = %q, want %q", capturedOutput, "results")
	}
}

func TestOnCompactionHooks(t *testing.T) {
	r := NewRegistry()
	var capturedSession string
	var capturedStrategy compaction.Strategy

	r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
		capturedSession = sessionID
		return nil
	})
	r.OnAfterCompaction(func(ctx context.Context, result *compaction.Result) error {
		capturedStrategy = result.Strategy
		return nil
	})

	if err := r.TriggerBeforeCompaction(context.Background(), "session-1"); err != nil {
		t.Errorf("TriggerBeforeCompaction returned error: %v", err)
	}
	if capturedSession != "session-1" {
		t.Errorf("captured session = %q, want %q", capturedSession, "session-1")
	}

	result := &compaction.Result{Strategy: compaction.StrategyChronological}
	if err := r.TriggerAfterCompaction(context.Background(), result); err != nil {
		t.Errorf("TriggerAfterCompaction returned error: %v", err)
	}
	if capturedStrategy != compaction.StrategyChronological {
		t.Errorf("captured strategy = %q, want chronological", capturedStrategy)
	}
}

func TestHookErrorStopsChain(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	secondCalled := false

	r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
		return boom
	})
	r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
		secondCalled = true
		return nil
	})

	err := r.TriggerBeforeCompaction(context.Background(), "session-1")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if secondCalled {
		t.Error("second hook ran after the first returned an error")
	}
}

func TestMultipleHooksRunInOrder(t *testing.T) {
	r := NewRegistry()
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
			order = append(order, i)
			return nil
		})
	}

	if err := r.TriggerBeforeCompaction(context.Background(), "session-1"); err != nil {
		t.Fatalf("TriggerBeforeCompaction returned error: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("hooks ran in order %v, want [1 2 3]", order)
	}
}

func TestLoggingHooksInstall(t *testing.T) {
	r := NewRegistry()
	DefaultLoggingHooks().Install(r)

	// All triggers run without error against the installed hooks.
	s := state.New(1000)
	if err := r.TriggerDispatch(context.Background(), state.AddMessage{Message: types.NewUserMessage("hi")}, s); err != nil {
		t.Errorf("TriggerDispatch returned error: %v", err)
	}
	if err := r.TriggerToolCall(context.Background(), "search", nil, "ok", nil); err != nil {
		t.Errorf("TriggerToolCall returned error: %v", err)
	}
	if err := r.TriggerAfterCompaction(context.Background(), &compaction.Result{
		Strategy:        compaction.StrategyTopicSummary,
		OriginalTokens:  1000,
		CompactedTokens: 400,
	}); err != nil {
		t.Errorf("TriggerAfterCompaction returned error: %v", err)
	}
}
