package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/stateloop/convopg/types"
)

// Result describes one completed compaction. It is created only by
// Compactor.Compact and consumed once to build the next conversation state.
type Result struct {
	// Strategy is the strategy that produced this result
	Strategy Strategy

	// OriginalTokens is the token count before compaction
	OriginalTokens int

	// CompactedTokens is the token count after compaction
	CompactedTokens int

	// CompressionRatio is compacted/original tokens
	CompressionRatio float64

	// Summary is the generated summary message (IsSummary set)
	Summary *types.Message

	// Preserved is the critical set that survives verbatim, in original order
	Preserved []*types.Message

	// Removed is the summarized-away set, in original order. Stores archive
	// it alongside the compaction event so no content is lost irrecoverably.
	Removed []*types.Message

	// Messages is the compacted sequence: [Summary, Preserved...]
	Messages []*types.Message

	// MessagesRemoved is how many messages the summary replaced
	MessagesRemoved int

	// Duration is how long the compaction took, summarizer call included
	Duration time.Duration
}

// Compactor performs the compaction operation: analyze, summarize, assemble.
// It never touches conversation state; applying a Result is the caller's job.
type Compactor struct {
	summarizer Summarizer
	counter    TokenCounter
	cfg        Config
}

// NewCompactor creates a compactor with the given collaborators
func NewCompactor(summarizer Summarizer, counter TokenCounter, cfg Config) *Compactor {
	return &Compactor{
		summarizer: summarizer,
		counter:    counter,
		cfg:        cfg,
	}
}

// Compact summarizes the non-critical messages and assembles the compacted
// sequence [summary, preserved-critical...]. Critical messages are never
// silently dropped. When targetTokens is positive, recent non-critical
// messages are kept verbatim as long as the preserved set stays within the
// budget; zero compacts down to the critical set alone. On summarizer
// failure the error is returned and nothing is produced: no partial Result
// ever exists.
func (c *Compactor) Compact(ctx context.Context, messages []*types.Message, strategy Strategy, targetTokens int, instructions string) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessagesToCompact
	}

	start := time.Now()

	analysis := Analyze(messages, c.cfg.PreserveLastN)
	keep := make(map[int]bool, len(messages))
	for i := range messages {
		if analysis.IsCritical(i) {
			keep[i] = true
		}
	}

	if targetTokens > 0 {
		fillToBudget(messages, keep, targetTokens)
	}

	var critical, toSummarize []*types.Message
	for i, msg := range messages {
		if keep[i] {
			critical = append(critical, msg)
		} else {
			toSummarize = append(toSummarize, msg)
		}
	}

	if len(toSummarize) == 0 {
		return nil, fmt.Errorf("%w: every message is critical", ErrNoMessagesToCompact)
	}

	summaryText, err := c.summarizer.Summarize(ctx, SummaryRequest{
		Messages:     toSummarize,
		Critical:     critical,
		Strategy:     strategy,
		Instructions: instructions,
	})
	if err != nil {
		return nil, NewError("Compact", err).WithContext("strategy", strategy.String())
	}

	summaryUsage, err := c.counter.CountMessage(ctx, &types.Message{
		Role:    types.RoleAssistant,
		Content: []types.ContentBlock{types.NewTextBlock(summaryText)},
	})
	if err != nil {
		return nil, NewError("Compact", err).WithContext("stage", "count summary tokens")
	}

	summary := types.NewSummaryMessage(summaryText, summaryUsage)

	compacted := make([]*types.Message, 0, len(critical)+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, critical...)

	original := SumTokens(messages)
	compactedTokens := SumTokens(compacted)

	ratio := 0.0
	if original > 0 {
		ratio = float64(compactedTokens) / float64(original)
	}

	return &Result{
		Strategy:         strategy,
		OriginalTokens:   original,
		CompactedTokens:  compactedTokens,
		CompressionRatio: ratio,
		Summary:          summary,
		Preserved:        critical,
		Removed:          toSummarize,
		Messages:         compacted,
		MessagesRemoved:  len(toSummarize),
		Duration:         time.Since(start),
	}, nil
}

// fillToBudget promotes the most recent unkept messages into the kept set
// while the kept total fits within targetTokens, newest first, stopping at
// the first message that does not fit.
func fillToBudget(messages []*types.Message, keep map[int]bool, targetTokens int) {
	budget := targetTokens
	for i := range messages {
		if keep[i] {
			budget -= messages[i].TokenCount()
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if keep[i] {
			continue
		}
		tokens := messages[i].TokenCount()
		if tokens > budget {
			return
		}
		keep[i] = true
		budget -= tokens
	}
}
