package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidConfig indicates invalid compaction configuration.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrNoMessagesToCompact indicates there are no messages eligible for compaction.
	ErrNoMessagesToCompact = errors.New("no messages to compact")

	// ErrCompactionInProgress indicates compaction is already running for this conversation.
	ErrCompactionInProgress = errors.New("compaction already in progress")

	// ErrCompactionNotNeeded indicates the conversation is below the trigger
	// threshold or the minimum token floor.
	ErrCompactionNotNeeded = errors.New("compaction not needed")

	// ErrSummarizationFailed indicates the summarization provider call failed.
	// The conversation state is left unchanged when this is returned.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrTokenCountingFailed indicates token counting failed.
	ErrTokenCountingFailed = errors.New("token counting failed")
)

// Error provides structured context for compaction failures.
type Error struct {
	// Op is the operation that failed (e.g. "Compact", "Summarize")
	Op string

	// SessionID is the conversation session if applicable
	SessionID string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.SessionID != "" {
		msg += fmt.Sprintf(" for session %s", e.SessionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithSession sets the session ID and returns the error for chaining.
func (e *Error) WithSession(sessionID string) *Error {
	e.SessionID = sessionID
	return e
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a compaction Error for the given operation.
func NewError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}
