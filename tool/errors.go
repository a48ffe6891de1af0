package tool

import "errors"

var (
	// ErrToolNotFound indicates a lookup for a name with no registered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolDisabled indicates the tool is registered but currently disabled.
	ErrToolDisabled = errors.New("tool disabled")

	// ErrDuplicateTool indicates a registration under an already-taken name.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrExecutionTimeout indicates a tool run exceeded the executor timeout.
	ErrExecutionTimeout = errors.New("tool execution timed out")
)
