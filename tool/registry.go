package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// Registry is a name-keyed collection of tools with per-tool enablement.
// Registration and enablement may change at runtime; the enabled state is
// consulted at lookup time, not at registration time.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	enabled map[string]bool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		enabled: make(map[string]bool),
	}
}

// Register adds a tool under its name. Newly registered tools are enabled.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	r.enabled[name] = true
	return nil
}

// Unregister removes a tool by name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
	delete(r.enabled, name)
}

// Enable marks a registered tool as available for lookup
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	r.enabled[name] = true
	return nil
}

// Disable marks a registered tool as unavailable without removing it
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	r.enabled[name] = false
	return nil
}

// Get returns the tool registered under name. Disabled tools are reported
// as ErrToolDisabled so callers can distinguish "missing" from "turned off".
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	if !r.enabled[name] {
		return nil, fmt.Errorf("%w: %q", ErrToolDisabled, name)
	}
	return t, nil
}

// Names returns the names of all registered tools, sorted, regardless of
// enabled state.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledNames returns the names of all enabled tools, sorted
func (r *Registry) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if r.enabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToAnthropicTools converts all enabled tools to Anthropic tool parameters
func (r *Registry) ToAnthropicTools() []anthropic.ToolUnionParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	params := make([]anthropic.ToolUnionParam, 0, len(r.tools))
	for name, t := range r.tools {
		if !r.enabled[name] {
			continue
		}
		toolParam := convertToolToParam(t)
		params = append(params, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

// convertToolToParam converts a single tool to Anthropic format
func convertToolToParam(t Tool) anthropic.ToolParam {
	schema := t.InputSchema()

	properties := make(map[string]interface{})
	for propName, propDef := range schema.Properties {
		properties[propName] = convertPropertyDef(propDef)
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       constant.Object("object"),
		Properties: properties,
	}
	if len(schema.Required) > 0 {
		inputSchema.Required = schema.Required
	}

	return anthropic.ToolParam{
		Name:        t.Name(),
		Description: anthropic.String(t.Description()),
		InputSchema: inputSchema,
	}
}

// convertPropertyDef converts a property definition to Anthropic format
func convertPropertyDef(def PropertyDef) map[string]interface{} {
	prop := map[string]interface{}{
		"type": def.Type,
	}

	if def.Description != "" {
		prop["description"] = def.Description
	}
	if len(def.Enum) > 0 {
		prop["enum"] = def.Enum
	}
	if def.Items != nil {
		prop["items"] = convertPropertyDef(*def.Items)
	}
	if len(def.Properties) > 0 {
		nested := make(map[string]interface{})
		for key, nestedDef := range def.Properties {
			nested[key] = convertPropertyDef(nestedDef)
		}
		prop["properties"] = nested
	}

	return prop
}
