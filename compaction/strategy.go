package compaction

// Strategy identifies how the summarizer should treat the conversation
type Strategy string

const (
	// StrategyPreserveToolContext keeps tool invocation continuity front and
	// center; chosen for tool-heavy conversations.
	StrategyPreserveToolContext Strategy = "preserve_tool_context"

	// StrategyTopicSummary organizes the summary around detected topic
	// segments; chosen for conversations with many topic shifts.
	StrategyTopicSummary Strategy = "topic_summary"

	// StrategyChronological is the fallback: a single chronological summary.
	StrategyChronological Strategy = "chronological"
)

// IsValid returns true for a known strategy value
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyPreserveToolContext, StrategyTopicSummary, StrategyChronological:
		return true
	default:
		return false
	}
}

// String returns the string representation of the strategy
func (s Strategy) String() string {
	return string(s)
}

// SelectStrategy picks a strategy from conversation shape. The tool-volume
// check is always evaluated first: tool continuity takes priority over topic
// structure.
func SelectStrategy(a *Analysis, cfg Config) Strategy {
	if a.ToolInvocations > cfg.ToolCallThreshold {
		return StrategyPreserveToolContext
	}
	if a.TopicTransitions > cfg.TopicTransitionThreshold {
		return StrategyTopicSummary
	}
	return StrategyChronological
}
