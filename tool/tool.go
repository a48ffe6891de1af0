// Package tool provides the tool execution layer: a name-keyed registry of
// runtime-registered capabilities and an executor that runs invocations as
// independent concurrent tasks observable as discrete completion events.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is the common execute contract all tools implement
type Tool interface {
	// Name returns the tool name used for registration and lookup
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// InputSchema returns the JSON Schema for the tool's input parameters
	InputSchema() ToolSchema

	// Execute runs the tool with the provided input and returns the result
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolSchema defines the JSON Schema for a tool's input parameters
type ToolSchema struct {
	// Type must be "object"
	Type string `json:"type"`

	// Properties defines the tool's parameters
	Properties map[string]PropertyDef `json:"properties"`

	// Required lists the names of required parameters
	Required []string `json:"required,omitempty"`
}

// PropertyDef defines a single property in the tool schema
type PropertyDef struct {
	// Type is the JSON Schema type (string, number, boolean, array, object)
	Type string `json:"type"`

	// Description explains what this parameter is for
	Description string `json:"description,omitempty"`

	// Enum restricts the parameter to specific values
	Enum []string `json:"enum,omitempty"`

	// Items defines the schema for array items (when Type is "array")
	Items *PropertyDef `json:"items,omitempty"`

	// Properties defines nested object properties (when Type is "object")
	Properties map[string]PropertyDef `json:"properties,omitempty"`
}

// EmptySchema returns a schema for tools that take no parameters
func EmptySchema() ToolSchema {
	return ToolSchema{
		Type:       "object",
		Properties: map[string]PropertyDef{},
	}
}

// funcTool is a simple Tool implementation using a function
type funcTool struct {
	name        string
	description string
	schema      ToolSchema
	fn          func(context.Context, json.RawMessage) (string, error)
}

// Name implements Tool
func (t *funcTool) Name() string {
	return t.name
}

// Description implements Tool
func (t *funcTool) Description() string {
	return t.description
}

// InputSchema implements Tool
func (t *funcTool) InputSchema() ToolSchema {
	return t.schema
}

// Execute implements Tool
func (t *funcTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.fn(ctx, input)
}

// NewFuncTool creates a Tool from a function, for simple tools that don't
// warrant a full struct.
func NewFuncTool(name, description string, schema ToolSchema, fn func(context.Context, json.RawMessage) (string, error)) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}
