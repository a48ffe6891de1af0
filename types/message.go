// Package types defines the message model shared across the conversation core.
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleTool represents a tool result message
	RoleTool Role = "tool"
)

// Message represents a conversation message with metadata.
// Messages are immutable once created: transformations that need a
// divergent copy must go through Clone.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Usage     Usage          `json:"usage"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`

	// Compaction metadata
	IsPreserved bool `json:"is_preserved"` // Never compact this message
	IsSummary   bool `json:"is_summary"`   // This is a compaction summary
}

// TokenCount returns the total token count across all usage categories
func (m *Message) TokenCount() int {
	return m.Usage.Total()
}

// HasToolUse returns true if the message contains a tool_use block
func (m *Message) HasToolUse() bool {
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse {
			return true
		}
	}
	return false
}

// ToolUseIDs returns the IDs of all tool_use blocks in the message
func (m *Message) ToolUseIDs() []string {
	var ids []string
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse && block.ToolUseID != "" {
			ids = append(ids, block.ToolUseID)
		}
	}
	return ids
}

// ToolResultIDs returns the tool_use IDs answered by tool_result blocks
func (m *Message) ToolResultIDs() []string {
	var ids []string
	for _, block := range m.Content {
		if block.Type == ContentTypeToolResult && block.ToolResultID != "" {
			ids = append(ids, block.ToolResultID)
		}
	}
	return ids
}

// Text returns the concatenated text content of the message
func (m *Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			out += block.Text
		}
	}
	return out
}

// Clone creates a deep copy of the message
func (m *Message) Clone() *Message {
	msgCopy := *m

	msgCopy.Content = make([]ContentBlock, len(m.Content))
	copy(msgCopy.Content, m.Content)

	if m.Metadata != nil {
		msgCopy.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			msgCopy.Metadata[k] = v
		}
	}

	return &msgCopy
}

// WithUsage returns a copy of the message carrying the given usage
func (m *Message) WithUsage(u Usage) *Message {
	msgCopy := m.Clone()
	msgCopy.Usage = u
	return msgCopy
}

// ContentType represents the type of content block
type ContentType string

const (
	// ContentTypeText represents text content
	ContentTypeText ContentType = "text"

	// ContentTypeToolUse represents a tool use block
	ContentTypeToolUse ContentType = "tool_use"

	// ContentTypeToolResult represents a tool result block
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentBlock represents a piece of content in a message
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Tool use content
	ToolUseID    string          `json:"id,omitempty"`
	ToolName     string          `json:"name,omitempty"`
	ToolInputRaw json.RawMessage `json:"input,omitempty"`

	// Tool result content
	ToolResultID string `json:"tool_use_id,omitempty"`
	ToolContent  string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// Usage represents token consumption broken down by category
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
	ToolOverheadTokens  int `json:"tool_overhead_tokens,omitempty"`
}

// Total returns the sum across all categories
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens + u.ToolOverheadTokens
}

// Add returns the element-wise sum of two usages
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens + other.CacheReadTokens,
		ToolOverheadTokens:  u.ToolOverheadTokens + other.ToolOverheadTokens,
	}
}

// NewMessage creates a new message with a generated ID and timestamp
func NewMessage(role Role, content []ContentBlock) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message with text content
func NewUserMessage(text string) *Message {
	return NewMessage(RoleUser, []ContentBlock{
		{Type: ContentTypeText, Text: text},
	})
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content []ContentBlock) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolResultMessage creates a tool message answering the given tool_use ID
func NewToolResultMessage(toolUseID, content string, isError bool) *Message {
	return NewMessage(RoleTool, []ContentBlock{
		{Type: ContentTypeToolResult, ToolResultID: toolUseID, ToolContent: content, IsError: isError},
	})
}

// NewSummaryMessage creates an assistant message flagged as a compaction summary
func NewSummaryMessage(text string, usage Usage) *Message {
	msg := NewMessage(RoleAssistant, []ContentBlock{
		{Type: ContentTypeText, Text: text},
	})
	msg.IsSummary = true
	msg.IsPreserved = true
	msg.Usage = usage
	return msg
}

// NewTextBlock creates a text content block
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{
		Type: ContentTypeText,
		Text: text,
	}
}

// NewToolUseBlock creates a tool use content block
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Type:         ContentTypeToolUse,
		ToolUseID:    id,
		ToolName:     name,
		ToolInputRaw: input,
	}
}

// NewToolResultBlock creates a tool result content block
func NewToolResultBlock(toolUseID string, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:         ContentTypeToolResult,
		ToolResultID: toolUseID,
		ToolContent:  content,
		IsError:      isError,
	}
}
