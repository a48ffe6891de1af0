package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stateloop/convopg/types"
)

// SummaryRequest carries everything the provider needs to generate a summary
type SummaryRequest struct {
	// Messages are the messages to summarize (the non-critical set)
	Messages []*types.Message

	// Critical are the messages that survive compaction verbatim
	Critical []*types.Message

	// Strategy shapes the summary's emphasis
	Strategy Strategy

	// Instructions are optional caller-supplied additions to the prompt
	Instructions string
}

// Summarizer is the external summarization capability. A provider error is a
// hard failure: the caller must abort compaction and leave state untouched.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// AnthropicSummarizer generates summaries over the Anthropic streaming API
type AnthropicSummarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicSummarizer creates a summarizer with the given client and model
func NewAnthropicSummarizer(client *anthropic.Client, model string, maxTokens int) *AnthropicSummarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxSummaryTokens
	}
	return &AnthropicSummarizer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Summarize implements Summarizer
func (s *AnthropicSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessagesToCompact
	}

	userPrompt := BuildUserPrompt(req.Messages, req.Critical, req.Strategy, req.Instructions)

	stream := s.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: SummarizationSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("%w: failed to accumulate stream: %v", ErrSummarizationFailed, err)
		}
	}

	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	var summary strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			summary.WriteString(text.Text)
		}
	}

	if summary.Len() == 0 {
		return "", fmt.Errorf("%w: empty response from summarizer", ErrSummarizationFailed)
	}

	return summary.String(), nil
}
