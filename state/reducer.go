package state

import "fmt"

// Reducer computes the next state for a surviving action. It must be a pure
// function: no side effects, total over the Kind set.
type Reducer func(current *ConversationState, action Action) (*ConversationState, error)

// Reduce is the default reducer. Every action kind maps to a defined
// transition; an unrecognized kind is a programming error and is surfaced
// as ErrUnknownAction rather than silently ignored.
func Reduce(current *ConversationState, action Action) (*ConversationState, error) {
	switch a := action.(type) {
	case AddMessage:
		if a.Message == nil {
			return nil, fmt.Errorf("state: %w: add_message requires a message", ErrInvalidAction)
		}
		return current.AppendMessage(a.Message), nil

	case ApplyCompaction:
		if a.Summary == nil {
			return nil, fmt.Errorf("state: %w: apply_compaction requires a summary message", ErrInvalidAction)
		}
		return current.ApplyCompaction(a.Summary, a.Preserved, a.BasisLen), nil

	case UpdatePreferences:
		return current.WithPreferences(a.Preferences), nil

	case BeginToolExecution:
		if a.Execution.ID == "" {
			return nil, fmt.Errorf("state: %w: begin_tool_execution requires an execution ID", ErrInvalidAction)
		}
		return current.BeginTool(a.Execution), nil

	case CompleteToolExecution:
		return current.CompleteTool(a.ID), nil

	case UpdateContextLimit:
		if a.MaxTokens <= 0 {
			return nil, fmt.Errorf("state: %w: context limit must be positive, got %d", ErrInvalidAction, a.MaxTokens)
		}
		return current.WithMaxTokens(a.MaxTokens), nil

	case UpdatePhase:
		if err := ValidateTransition(current.Phase, a.Phase); err != nil {
			return nil, fmt.Errorf("state: %w: %v", ErrInvalidAction, err)
		}
		return current.WithPhase(a.Phase), nil

	case SetMetadata:
		if a.Key == "" {
			return nil, fmt.Errorf("state: %w: set_metadata requires a key", ErrInvalidAction)
		}
		return current.WithMetadata(a.Key, a.Value), nil

	default:
		return nil, fmt.Errorf("state: %w: %q", ErrUnknownAction, action.Kind())
	}
}
