// Package compaction decides when a conversation's context window has grown
// too large and shrinks it by replacing older messages with a generated
// summary plus preserved critical messages.
//
// Compaction triggers when utilization reaches the configured threshold
// (default 85% of the context window) and the conversation has accumulated
// at least the minimum token floor (default 10,000). Short conversations are
// never compacted regardless of their nominal utilization.
//
// Strategy selection is a policy, not a hard rule: conversations dominated
// by tool activity use PreserveToolContext, topic-heavy conversations use
// TopicSummary, and everything else falls back to Chronological. The
// tool-volume check is always evaluated first so tool continuity takes
// priority over topic structure.
//
// Summarization is delegated to a Summarizer collaborator. If the provider
// call fails, compaction aborts and the conversation state is left
// untouched: no partial result is ever applied.
package compaction
