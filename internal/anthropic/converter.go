// Package anthropic converts between convopg message types and the
// Anthropic SDK's wire types.
package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/types"
)

// ToMessageParams converts conversation messages to Anthropic message
// parameters. Tool result messages are sent under the user role, which is
// how the API expects them.
func ToMessageParams(messages []*types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		contentBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			contentBlocks = append(contentBlocks, convertContentBlock(block))
		}

		role := anthropic.MessageParamRole(msg.Role)
		if msg.Role == types.RoleTool {
			role = anthropic.MessageParamRoleUser
		}

		params = append(params, anthropic.MessageParam{
			Role:    role,
			Content: contentBlocks,
		})
	}

	return params
}

// convertContentBlock converts a single content block
func convertContentBlock(block types.ContentBlock) anthropic.ContentBlockParamUnion {
	switch block.Type {
	case types.ContentTypeText:
		return anthropic.NewTextBlock(block.Text)

	case types.ContentTypeToolUse:
		var input any
		if len(block.ToolInputRaw) > 0 {
			_ = json.Unmarshal(block.ToolInputRaw, &input)
		}
		// The API requires a dictionary, not null.
		if input == nil {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName)

	case types.ContentTypeToolResult:
		return anthropic.NewToolResultBlock(block.ToolResultID, block.ToolContent, block.IsError)
	}

	// Fallback to empty text block
	return anthropic.NewTextBlock("")
}
