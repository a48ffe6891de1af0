package compaction

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stateloop/convopg/types"
)

// toolBlockOverhead approximates the structural tokens a tool_use or
// tool_result block adds beyond its content.
const toolBlockOverhead = 10

// TokenCounter produces per-category token counts for messages.
// Implementations must be deterministic for identical input.
type TokenCounter interface {
	// CountText returns the token count for a plain text string
	CountText(ctx context.Context, text string) (int, error)

	// CountMessage returns the per-category usage for a message
	CountMessage(ctx context.Context, msg *types.Message) (types.Usage, error)
}

// ApproximateTokens estimates tokens without an API call, at roughly four
// characters per token, rounding up so non-empty text never counts as zero.
func ApproximateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ApproximateCounter is a pure, deterministic TokenCounter built on the
// character-ratio approximation. It never fails.
type ApproximateCounter struct{}

// CountText implements TokenCounter
func (ApproximateCounter) CountText(_ context.Context, text string) (int, error) {
	return ApproximateTokens(text), nil
}

// CountMessage implements TokenCounter. Text content is attributed to the
// input category for user and tool messages and to output for assistant
// messages; tool blocks contribute to the tool-overhead category.
func (ApproximateCounter) CountMessage(_ context.Context, msg *types.Message) (types.Usage, error) {
	return approximateMessageUsage(msg), nil
}

func approximateMessageUsage(msg *types.Message) types.Usage {
	var usage types.Usage
	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText:
			tokens := ApproximateTokens(block.Text)
			if msg.Role == types.RoleAssistant {
				usage.OutputTokens += tokens
			} else {
				usage.InputTokens += tokens
			}
		case types.ContentTypeToolUse:
			usage.ToolOverheadTokens += ApproximateTokens(string(block.ToolInputRaw)) + toolBlockOverhead
		case types.ContentTypeToolResult:
			usage.InputTokens += ApproximateTokens(block.ToolContent)
			usage.ToolOverheadTokens += toolBlockOverhead
		}
	}
	return usage
}

// AnthropicCounter counts tokens via the Anthropic count-tokens API, with a
// sha256-keyed cache and the approximation as fallback when the API fails.
type AnthropicCounter struct {
	client *anthropic.Client
	model  string

	mu    sync.Mutex
	cache map[string]int
}

// NewAnthropicCounter creates a counter backed by the given client and model
func NewAnthropicCounter(client *anthropic.Client, model string) *AnthropicCounter {
	return &AnthropicCounter{
		client: client,
		model:  model,
		cache:  make(map[string]int),
	}
}

// CountText implements TokenCounter
func (c *AnthropicCounter) CountText(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	key := c.cacheKey(text)
	c.mu.Lock()
	if count, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return count, nil
	}
	c.mu.Unlock()

	resp, err := c.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(text),
				},
			},
		},
	})
	if err != nil {
		// Fall back to approximation so token accounting stays available
		// when the API is unreachable.
		return ApproximateTokens(text), nil
	}

	count := int(resp.InputTokens)
	c.mu.Lock()
	c.cache[key] = count
	c.mu.Unlock()
	return count, nil
}

// CountMessage implements TokenCounter
func (c *AnthropicCounter) CountMessage(ctx context.Context, msg *types.Message) (types.Usage, error) {
	var usage types.Usage
	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText:
			tokens, err := c.CountText(ctx, block.Text)
			if err != nil {
				return types.Usage{}, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
			}
			if msg.Role == types.RoleAssistant {
				usage.OutputTokens += tokens
			} else {
				usage.InputTokens += tokens
			}
		case types.ContentTypeToolUse:
			tokens, err := c.CountText(ctx, string(block.ToolInputRaw))
			if err != nil {
				return types.Usage{}, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
			}
			usage.ToolOverheadTokens += tokens + toolBlockOverhead
		case types.ContentTypeToolResult:
			tokens, err := c.CountText(ctx, block.ToolContent)
			if err != nil {
				return types.Usage{}, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
			}
			usage.InputTokens += tokens
			usage.ToolOverheadTokens += toolBlockOverhead
		}
	}
	return usage, nil
}

// cacheKey hashes content so large texts don't bloat the cache
func (c *AnthropicCounter) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%x", c.model, hash[:8])
}

// SumTokens calculates total tokens across messages
func SumTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += msg.TokenCount()
	}
	return total
}
