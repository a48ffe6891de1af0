package convopg

import (
	"fmt"
	"log"
	"time"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/storage"
	"github.com/stateloop/convopg/tool"
)

// Option is a functional option for configuring a Conversation
type Option func(*internalConfig) error

// WithMaxTokens sets the maximum number of tokens to generate per response
func WithMaxTokens(n int64) Option {
	return func(c *internalConfig) error {
		c.maxTokens = n
		return nil
	}
}

// WithMaxContextTokens overrides the context window size derived from the model
func WithMaxContextTokens(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: MaxContextTokens must be positive", ErrInvalidConfig)
		}
		c.maxContextTokens = n
		return nil
	}
}

// WithAutoCompaction enables or disables automatic context compaction.
// Enabled by default.
func WithAutoCompaction(enabled bool) Option {
	return func(c *internalConfig) error {
		c.autoCompaction = enabled
		return nil
	}
}

// WithCompactionTrigger sets the utilization ratio that activates compaction
func WithCompactionTrigger(ratio float64) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.TriggerThreshold = ratio
		return nil
	}
}

// WithTargetUtilization sets the approximate utilization after compaction
func WithTargetUtilization(ratio float64) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.TargetUtilization = ratio
		return nil
	}
}

// WithMinCompactionTokens sets the consumed-token floor below which
// compaction is skipped regardless of utilization
func WithMinCompactionTokens(n int) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.MinCompactionTokens = n
		return nil
	}
}

// WithToolCallThreshold sets the tool invocation count above which the
// tool-context preserving strategy is selected
func WithToolCallThreshold(n int) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.ToolCallThreshold = n
		return nil
	}
}

// WithTopicTransitionThreshold sets the topic transition count above which
// the topic summary strategy is selected
func WithTopicTransitionThreshold(n int) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.TopicTransitionThreshold = n
		return nil
	}
}

// WithPreserveLastN sets how many recent messages always survive compaction
func WithPreserveLastN(n int) Option {
	return func(c *internalConfig) error {
		c.compactionCfg.PreserveLastN = n
		return nil
	}
}

// WithSummarizerModel sets the model used for summary generation. Defaults
// to the conversation model.
func WithSummarizerModel(model string) Option {
	return func(c *internalConfig) error {
		if model == "" {
			return fmt.Errorf("%w: SummarizerModel must not be empty", ErrInvalidConfig)
		}
		c.compactionCfg.SummarizerModel = model
		return nil
	}
}

// WithHistoryLimit caps how many pre-transition states the dispatch
// pipeline retains. Zero keeps unbounded history.
func WithHistoryLimit(n int) Option {
	return func(c *internalConfig) error {
		c.historyLimit = n
		return nil
	}
}

// WithMiddleware appends middleware to the dispatch pipeline, run in
// registration order
func WithMiddleware(mw ...state.Middleware) Option {
	return func(c *internalConfig) error {
		c.middleware = append(c.middleware, mw...)
		return nil
	}
}

// WithSubscriber registers a subscriber notified after each committed action
func WithSubscriber(sub state.Subscriber) Option {
	return func(c *internalConfig) error {
		c.subscribers = append(c.subscribers, sub)
		return nil
	}
}

// WithTools registers tools with the conversation
func WithTools(tools ...tool.Tool) Option {
	return func(c *internalConfig) error {
		c.tools = append(c.tools, tools...)
		return nil
	}
}

// WithToolTimeout sets the per-invocation timeout for tool execution
func WithToolTimeout(d time.Duration) Option {
	return func(c *internalConfig) error {
		c.toolTimeout = d
		return nil
	}
}

// WithSummarizer overrides the Anthropic-backed summarizer
func WithSummarizer(s compaction.Summarizer) Option {
	return func(c *internalConfig) error {
		c.summarizer = s
		return nil
	}
}

// WithTokenCounter overrides the Anthropic-backed token counter
func WithTokenCounter(tc compaction.TokenCounter) Option {
	return func(c *internalConfig) error {
		c.counter = tc
		return nil
	}
}

// WithStore enables snapshot and compaction-event persistence
func WithStore(s storage.Store) Option {
	return func(c *internalConfig) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the logger used for subscriber failures and background
// compaction errors
func WithLogger(logger *log.Logger) Option {
	return func(c *internalConfig) error {
		c.logger = logger
		return nil
	}
}
