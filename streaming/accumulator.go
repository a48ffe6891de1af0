package streaming

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/types"
)

// Accumulator folds provider stream events into a complete assistant
// message. Process also reports the provider-agnostic events produced by
// each raw event so callers can forward text in production order.
type Accumulator struct {
	messageID  string
	model      string
	stopReason string
	usage      types.Usage
	content    []pendingBlock

	// Blocks still receiving deltas, keyed by stream index.
	currentBlocks map[int]*pendingBlock
}

// pendingBlock is a content block being accumulated
type pendingBlock struct {
	blockType types.ContentType
	index     int
	text      string
	toolID    string
	toolName  string
	toolInput strings.Builder
}

// NewAccumulator creates a new stream accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		currentBlocks: make(map[int]*pendingBlock),
	}
}

// Process folds one provider event into the accumulator and returns the
// provider-agnostic events it produced, in production order.
func (a *Accumulator) Process(event anthropic.MessageStreamEventUnion) []Event {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		a.messageID = e.Message.ID
		a.model = string(e.Message.Model)
		a.usage.InputTokens = int(e.Message.Usage.InputTokens)
		a.usage.CacheCreationTokens = int(e.Message.Usage.CacheCreationInputTokens)
		a.usage.CacheReadTokens = int(e.Message.Usage.CacheReadInputTokens)
		return []Event{&MessageStartEvent{MessageID: a.messageID, Model: a.model}}

	case anthropic.ContentBlockStartEvent:
		block := &pendingBlock{index: int(e.Index)}

		switch content := e.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			block.blockType = types.ContentTypeText
			block.text = content.Text
			a.currentBlocks[block.index] = block
			if content.Text != "" {
				return []Event{&TextDeltaEvent{Index: block.index, Delta: content.Text}}
			}

		case anthropic.ToolUseBlock:
			block.blockType = types.ContentTypeToolUse
			block.toolID = content.ID
			block.toolName = content.Name
			a.currentBlocks[block.index] = block
			return []Event{&ToolUseStartEvent{
				Index:    block.index,
				ToolID:   content.ID,
				ToolName: content.Name,
			}}
		}
		return nil

	case anthropic.ContentBlockDeltaEvent:
		block, exists := a.currentBlocks[int(e.Index)]
		if !exists {
			return nil
		}

		switch delta := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			block.text += delta.Text
			return []Event{&TextDeltaEvent{Index: block.index, Delta: delta.Text}}

		case anthropic.InputJSONDelta:
			block.toolInput.WriteString(delta.PartialJSON)
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		block, exists := a.currentBlocks[int(e.Index)]
		if exists {
			a.content = append(a.content, *block)
			delete(a.currentBlocks, int(e.Index))
		}
		return nil

	case anthropic.MessageDeltaEvent:
		a.stopReason = string(e.Delta.StopReason)
		a.usage.OutputTokens = int(e.Usage.OutputTokens)
		return nil

	case anthropic.MessageStopEvent:
		return []Event{&MessageStopEvent{StopReason: a.stopReason}}

	default:
		// Ignore unknown events
		return nil
	}
}

// StopReason returns the provider stop reason, if one has arrived
func (a *Accumulator) StopReason() string {
	return a.stopReason
}

// Message returns the accumulated assistant message. It can be called at
// any time for the current partial state.
func (a *Accumulator) Message() *types.Message {
	blocks := make([]types.ContentBlock, 0, len(a.content))

	for _, block := range a.content {
		switch block.blockType {
		case types.ContentTypeText:
			blocks = append(blocks, types.NewTextBlock(block.text))

		case types.ContentTypeToolUse:
			// An empty input stream still means a valid call with no
			// arguments.
			inputStr := block.toolInput.String()
			if inputStr == "" {
				inputStr = "{}"
			}
			blocks = append(blocks, types.NewToolUseBlock(block.toolID, block.toolName, json.RawMessage(inputStr)))
		}
	}

	msg := types.NewAssistantMessage(blocks)
	return msg.WithUsage(a.usage)
}
