package compaction

import (
	"fmt"
	"strings"

	"github.com/stateloop/convopg/types"
)

// SummarizationSystemPrompt instructs the model to produce a structured
// summary that can replace the original messages without losing the context
// needed to continue the conversation.
const SummarizationSystemPrompt = `You are a conversation summarizer for an AI assistant. Older messages of a long conversation will be replaced by your summary, so it must preserve everything needed to continue seamlessly.

Produce a structured summary with these sections. Write "None" for a section with no relevant content.

1. **Goal and Intent** - what the user is trying to accomplish, including stated constraints.
2. **Key Facts and Decisions** - technical details, decisions made, and their reasoning.
3. **Tool Activity** - tools invoked, their inputs in brief, and the outcomes that still matter.
4. **Errors and Resolutions** - problems hit and how they were resolved or worked around.
5. **User Preferences** - preferences or conventions the user expressed.
6. **Open Items** - pending work, unanswered questions, and the immediate next step.

Guidelines:
- Be concise but complete; keep exact names, paths, and identifiers.
- Keep events in chronological order within each section.
- Never invent information that was not in the conversation.`

// strategyInstructions returns extra guidance appended for each strategy
func strategyInstructions(strategy Strategy) string {
	switch strategy {
	case StrategyPreserveToolContext:
		return "This conversation is tool-heavy. Give the Tool Activity section the most detail: record every tool call whose outcome is still relevant, including parameters and results, so tool continuity survives the compaction."
	case StrategyTopicSummary:
		return "This conversation moved through several distinct topics. Organize the Key Facts and Decisions section by topic, in the order the topics appeared, and note where the conversation changed subject."
	default:
		return "Summarize the conversation chronologically, weighting recent exchanges more heavily than early ones."
	}
}

// BuildUserPrompt assembles the summarization request for the given messages
// and strategy. Critical messages are listed so the summarizer does not waste
// space restating content that survives compaction verbatim.
func BuildUserPrompt(toSummarize, critical []*types.Message, strategy Strategy, instructions string) string {
	var b strings.Builder

	b.WriteString("Summarize the following conversation according to your instructions.\n\n")
	b.WriteString(strategyInstructions(strategy))
	b.WriteString("\n\n<conversation>\n")
	b.WriteString(FormatMessagesAsText(toSummarize))
	b.WriteString("\n</conversation>\n")

	if len(critical) > 0 {
		b.WriteString("\nThe following recent messages are preserved verbatim after your summary; do not restate their content:\n\n<preserved>\n")
		b.WriteString(FormatMessagesAsText(critical))
		b.WriteString("\n</preserved>\n")
	}

	if instructions != "" {
		b.WriteString("\nAdditional instructions from the caller:\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	return b.String()
}

// FormatMessagesAsText renders messages as a plain-text transcript suitable
// for inclusion in a summarization prompt.
func FormatMessagesAsText(messages []*types.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("[%s]", msg.Role))
		for _, block := range msg.Content {
			switch block.Type {
			case types.ContentTypeText:
				b.WriteString(" " + block.Text)
			case types.ContentTypeToolUse:
				b.WriteString(fmt.Sprintf(" <tool call %s input=%s>", block.ToolName, string(block.ToolInputRaw)))
			case types.ContentTypeToolResult:
				b.WriteString(fmt.Sprintf(" <tool result for %s: %s>", block.ToolResultID, block.ToolContent))
			}
		}
	}
	return b.String()
}
