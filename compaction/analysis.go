package compaction

import (
	"strings"

	"github.com/stateloop/convopg/types"
)

// topicOverlapThreshold is the word-overlap ratio below which two
// consecutive user messages are counted as a topic transition.
const topicOverlapThreshold = 0.2

// Analysis summarizes the shape of a conversation for strategy selection
// and critical-context identification.
type Analysis struct {
	// ToolInvocations is the number of tool_use blocks across all messages
	ToolInvocations int

	// TopicTransitions counts user messages that shift topic relative to
	// the previous user message (lexical-overlap heuristic)
	TopicTransitions int

	// OpenToolUseIDs are tool_use IDs with no matching tool_result yet
	OpenToolUseIDs map[string]bool

	// criticalIdx marks message indices that must survive compaction
	criticalIdx map[int]bool
}

// Analyze inspects the message sequence. A message is critical when it is
// explicitly flagged preserved, participates in an open tool call (a
// tool_use awaiting its result, or the result of a still-pending call), or
// falls within the last preserveLastN messages.
func Analyze(messages []*types.Message, preserveLastN int) *Analysis {
	a := &Analysis{
		OpenToolUseIDs: make(map[string]bool),
		criticalIdx:    make(map[int]bool),
	}

	// Pass 1: tool accounting and topic transitions.
	var prevUserWords map[string]bool
	for _, msg := range messages {
		for _, id := range msg.ToolUseIDs() {
			a.ToolInvocations++
			a.OpenToolUseIDs[id] = true
		}
		for _, id := range msg.ToolResultIDs() {
			delete(a.OpenToolUseIDs, id)
		}

		if msg.Role == types.RoleUser {
			words := contentWords(msg.Text())
			if prevUserWords != nil && wordOverlap(prevUserWords, words) < topicOverlapThreshold {
				a.TopicTransitions++
			}
			if len(words) > 0 {
				prevUserWords = words
			}
		}
	}

	// Pass 2: critical flags.
	cutoff := len(messages) - preserveLastN
	for i, msg := range messages {
		switch {
		case msg.IsPreserved:
			a.criticalIdx[i] = true
		case i >= cutoff:
			a.criticalIdx[i] = true
		case msgTouchesOpenTool(msg, a.OpenToolUseIDs):
			a.criticalIdx[i] = true
		}
	}

	return a
}

// IsCritical reports whether the message at index i must survive compaction
func (a *Analysis) IsCritical(i int) bool {
	return a.criticalIdx[i]
}

// CriticalMessages returns the critical subset of messages in original order
func (a *Analysis) CriticalMessages(messages []*types.Message) []*types.Message {
	var out []*types.Message
	for i, msg := range messages {
		if a.criticalIdx[i] {
			out = append(out, msg)
		}
	}
	return out
}

// NonCriticalMessages returns the messages eligible for summarization
func (a *Analysis) NonCriticalMessages(messages []*types.Message) []*types.Message {
	var out []*types.Message
	for i, msg := range messages {
		if !a.criticalIdx[i] {
			out = append(out, msg)
		}
	}
	return out
}

func msgTouchesOpenTool(msg *types.Message, open map[string]bool) bool {
	for _, id := range msg.ToolUseIDs() {
		if open[id] {
			return true
		}
	}
	return false
}

// contentWords lowercases and keeps words longer than three characters, which
// drops most stopwords without a dictionary.
func contentWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

// wordOverlap returns the Jaccard similarity of two word sets
func wordOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
