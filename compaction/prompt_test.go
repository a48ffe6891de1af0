package compaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stateloop/convopg/types"
)

func TestBuildUserPrompt(t *testing.T) {
	toSummarize := []*types.Message{
		types.NewUserMessage("find the config file"),
		types.NewAssistantMessage([]types.ContentBlock{
			types.NewToolUseBlock("tu-1", "glob", json.RawMessage(`{"pattern":"*.yaml"}`)),
		}),
	}
	critical := []*types.Message{
		types.NewUserMessage("now update it"),
	}

	prompt := BuildUserPrompt(toSummarize, critical, StrategyPreserveToolContext, "keep file paths")

	for _, want := range []string{
		"<conversation>",
		"</conversation>",
		"<preserved>",
		"find the config file",
		"now update it",
		`<tool call glob input={"pattern":"*.yaml"}>`,
		"tool-heavy",
		"keep file paths",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildUserPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildUserPrompt([]*types.Message{types.NewUserMessage("hi")}, nil, StrategyChronological, "")

	if strings.Contains(prompt, "<preserved>") {
		t.Error("preserved section must be omitted when nothing is preserved")
	}
	if strings.Contains(prompt, "Additional instructions") {
		t.Error("instructions section must be omitted when empty")
	}
	if !strings.Contains(prompt, "chronologically") {
		t.Error("chronological guidance missing")
	}
}

func TestFormatMessagesAsText(t *testing.T) {
	messages := []*types.Message{
		types.NewUserMessage("hello"),
		types.NewToolResultMessage("tu-9", "42", false),
	}

	got := FormatMessagesAsText(messages)
	want := "[user] hello\n[tool] <tool result for tu-9: 42>"
	if got != want {
		t.Errorf("FormatMessagesAsText() = %q, want %q", got, want)
	}
}
