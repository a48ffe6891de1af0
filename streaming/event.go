// Package streaming delivers model responses incrementally. An Accumulator
// folds provider stream events into a complete message while emitting
// provider-agnostic events, and a Session owns the single response stream
// of a conversation, integrating tool completions through the dispatch
// pipeline in the order tools actually finish.
package streaming

// EventType represents the type of streaming event
type EventType string

const (
	// EventTypeMessageStart indicates the response message has started
	EventTypeMessageStart EventType = "message_start"

	// EventTypeTextDelta indicates a new chunk of text content
	EventTypeTextDelta EventType = "text_delta"

	// EventTypeToolUseStart indicates the model requested a tool invocation
	EventTypeToolUseStart EventType = "tool_use_start"

	// EventTypeToolResult indicates a tool invocation finished
	EventTypeToolResult EventType = "tool_result"

	// EventTypeMessageStop indicates the response message has ended
	EventTypeMessageStop EventType = "message_stop"

	// EventTypeError indicates the stream failed
	EventTypeError EventType = "error"

	// EventTypeAborted indicates the session was aborted by the caller
	EventTypeAborted EventType = "aborted"
)

// Event represents a streaming event
type Event interface {
	Type() EventType
}

// MessageStartEvent is emitted when the response message starts
type MessageStartEvent struct {
	MessageID string
	Model     string
}

func (e *MessageStartEvent) Type() EventType {
	return EventTypeMessageStart
}

// TextDeltaEvent is emitted when text content arrives. Deltas are emitted
// in production order.
type TextDeltaEvent struct {
	Index int
	Delta string
}

func (e *TextDeltaEvent) Type() EventType {
	return EventTypeTextDelta
}

// ToolUseStartEvent is emitted when a tool use block starts
type ToolUseStartEvent struct {
	Index    int
	ToolID   string
	ToolName string
}

func (e *ToolUseStartEvent) Type() EventType {
	return EventTypeToolUseStart
}

// ToolResultEvent is emitted when a tool invocation finishes. Events arrive
// in completion order, which may differ from launch order.
type ToolResultEvent struct {
	ToolID   string
	ToolName string
	Content  string
	IsError  bool
}

func (e *ToolResultEvent) Type() EventType {
	return EventTypeToolResult
}

// MessageStopEvent is emitted when the response message ends
type MessageStopEvent struct {
	StopReason string
}

func (e *MessageStopEvent) Type() EventType {
	return EventTypeMessageStop
}

// ErrorEvent is emitted when the stream fails
type ErrorEvent struct {
	Err error
}

func (e *ErrorEvent) Type() EventType {
	return EventTypeError
}

// AbortedEvent is emitted when the caller aborts the session
type AbortedEvent struct{}

func (e *AbortedEvent) Type() EventType {
	return EventTypeAborted
}
