package state

import (
	"context"
	"fmt"
	"log"
)

// Middleware runs before the reducer. Each middleware may return the action
// unchanged, return a transformed action, or veto the dispatch by returning
// a nil action. On veto, dispatch returns the unchanged current state and no
// reducer or subscriber runs. A non-nil error likewise rejects the action.
type Middleware func(ctx context.Context, action Action, current *ConversationState) (Action, error)

// ValidationMiddleware rejects actions with malformed payloads before they
// reach the reducer. The reducer performs the same checks itself; the
// middleware exists so callers can observe rejection without a reducer error.
func ValidationMiddleware() Middleware {
	return func(ctx context.Context, action Action, current *ConversationState) (Action, error) {
		switch a := action.(type) {
		case AddMessage:
			if a.Message == nil {
				return nil, nil
			}
			if a.Message.Usage.Total() < 0 {
				return nil, nil
			}
		case ApplyCompaction:
			if a.Summary == nil {
				return nil, nil
			}
		case UpdatePhase:
			if !current.Phase.CanTransitionTo(a.Phase) {
				return nil, nil
			}
		case UpdateContextLimit:
			if a.MaxTokens <= 0 {
				return nil, nil
			}
		}
		return action, nil
	}
}

// LoggingMiddleware logs each dispatched action and the pre-dispatch state
func LoggingMiddleware(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(ctx context.Context, action Action, current *ConversationState) (Action, error) {
		logger.Printf("[ConvoPG] dispatch %s: messages=%d tokens=%d utilization=%.2f",
			action.Kind(), current.MessageCount(), current.Window.Consumed(), current.Window.Utilization())
		return action, nil
	}
}

// PhaseGuardMiddleware vetoes state-extending actions once the conversation
// has reached a terminal phase.
func PhaseGuardMiddleware() Middleware {
	return func(ctx context.Context, action Action, current *ConversationState) (Action, error) {
		if !current.Phase.IsTerminal() {
			return action, nil
		}
		switch action.Kind() {
		case KindAddMessage, KindApplyCompaction, KindBeginToolExecution:
			return nil, fmt.Errorf("state: conversation is %s", current.Phase)
		}
		return action, nil
	}
}
