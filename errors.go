package convopg

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the conversation configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoStore is returned when a persistence operation is requested
	// without a configured store
	ErrNoStore = errors.New("no store configured")

	// ErrStreamActive is returned when starting a stream while another
	// stream is live for the same conversation
	ErrStreamActive = errors.New("stream already active")

	// ErrConversationClosed is returned when operating on a conversation
	// in a terminal phase
	ErrConversationClosed = errors.New("conversation closed")
)

// ConvoError provides structured error information for conversation operations
type ConvoError struct {
	Op        string         // Operation that failed
	Err       error          // Underlying error
	SessionID string         // Session ID if applicable
	Context   map[string]any // Additional context
}

// Error implements the error interface
func (e *ConvoError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ConvoError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *ConvoError) WithContext(key string, value any) *ConvoError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewConvoError creates a new ConvoError
func NewConvoError(op string, err error) *ConvoError {
	return &ConvoError{
		Op:  op,
		Err: err,
	}
}

// NewConvoErrorWithSession creates a new ConvoError with session ID
func NewConvoErrorWithSession(op string, sessionID string, err error) *ConvoError {
	return &ConvoError{
		Op:        op,
		Err:       err,
		SessionID: sessionID,
	}
}
