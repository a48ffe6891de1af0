// Package render converts conversation content to sanitized HTML for
// display. Model output and summaries are markdown; rendering them for a
// web surface requires both markdown conversion and sanitization, since
// model and tool output is untrusted.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/stateloop/convopg/types"
)

// markdownInstance is initialized once and reused. The configuration never
// changes and the goldmark Markdown is safe to share.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once

	policyInstance *bluemonday.Policy
	policyOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
		)
	})
	return markdownInstance
}

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policyInstance = bluemonday.UGCPolicy()
	})
	return policyInstance
}

// Markdown converts markdown text to sanitized HTML
func Markdown(input string) (string, error) {
	if input == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return getPolicy().Sanitize(buf.String()), nil
}

// Message renders one message as a sanitized HTML fragment. Text blocks go
// through markdown conversion; tool blocks are rendered as escaped
// preformatted text.
func Message(msg *types.Message) (string, error) {
	var sb strings.Builder

	role := string(msg.Role)
	if msg.IsSummary {
		role = "summary"
	}
	sb.WriteString(`<div class="message message-` + role + `">` + "\n")

	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText:
			rendered, err := Markdown(block.Text)
			if err != nil {
				return "", err
			}
			sb.WriteString(rendered)

		case types.ContentTypeToolUse:
			sb.WriteString(`<pre class="tool-use">` + html.EscapeString(block.ToolName))
			if len(block.ToolInputRaw) > 0 {
				sb.WriteString(" " + html.EscapeString(string(block.ToolInputRaw)))
			}
			sb.WriteString("</pre>\n")

		case types.ContentTypeToolResult:
			class := "tool-result"
			if block.IsError {
				class = "tool-result tool-error"
			}
			sb.WriteString(`<pre class="` + class + `">` + html.EscapeString(block.ToolContent) + "</pre>\n")
		}
	}

	sb.WriteString("</div>\n")
	return sb.String(), nil
}

// Transcript renders a full message sequence as sanitized HTML
func Transcript(messages []*types.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range messages {
		fragment, err := Message(msg)
		if err != nil {
			return "", err
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}
