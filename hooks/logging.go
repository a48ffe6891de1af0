package hooks

import (
	"context"
	"encoding/json"
	"log"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/types"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with the default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Dispatch logs each committed action
func (h *LoggingHooks) Dispatch(ctx context.Context, action state.Action, newState *state.ConversationState) error {
	h.logger.Printf("[ConvoPG] Dispatched %s: %d messages, %.1f%% of context used",
		action.Kind(), newState.MessageCount(), newState.Window.Utilization()*100)
	return nil
}

// BeforeMessage logs a message about to enter the conversation
func (h *LoggingHooks) BeforeMessage(ctx context.Context, message *types.Message) error {
	h.logger.Printf("[ConvoPG] Adding %s message (%d tokens)", message.Role, message.TokenCount())
	return nil
}

// ToolCall logs a finished tool invocation
func (h *LoggingHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	if err != nil {
		h.logger.Printf("[ConvoPG] Tool '%s' failed: %v", toolName, err)
	} else {
		outputPreview := output
		if len(outputPreview) > 100 {
			outputPreview = outputPreview[:100] + "..."
		}
		h.logger.Printf("[ConvoPG] Tool '%s' succeeded: %s", toolName, outputPreview)
	}
	return nil
}

// BeforeCompaction logs the start of context compaction
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, sessionID string) error {
	h.logger.Printf("[ConvoPG] Starting context compaction for session %s", sessionID)
	return nil
}

// AfterCompaction logs the compaction outcome
func (h *LoggingHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	reduction := float64(0)
	if result.OriginalTokens > 0 {
		reduction = float64(result.OriginalTokens-result.CompactedTokens) / float64(result.OriginalTokens) * 100
	}

	h.logger.Printf("[ConvoPG] Compaction complete: %d -> %d tokens (%.1f%% reduction, %d messages removed, strategy: %s)",
		result.OriginalTokens, result.CompactedTokens, reduction, result.MessagesRemoved, result.Strategy)
	return nil
}

// Install registers all logging hooks on a registry
func (h *LoggingHooks) Install(r *Registry) {
	r.OnDispatch(h.Dispatch)
	r.OnBeforeMessage(h.BeforeMessage)
	r.OnToolCall(h.ToolCall)
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Dispatch records context utilization after each committed action
func (h *MetricsHooks) Dispatch(ctx context.Context, action state.Action, newState *state.ConversationState) error {
	tags := map[string]string{"action": string(action.Kind())}

	h.OnMetric("convo.context.utilization", newState.Window.Utilization(), tags)
	h.OnMetric("convo.messages.count", float64(newState.MessageCount()), tags)
	return nil
}

// ToolCall records tool execution metrics
func (h *MetricsHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, err error) error {
	tags := map[string]string{"tool": toolName}

	if err != nil {
		h.OnMetric("convo.tool.error", 1, tags)
	} else {
		h.OnMetric("convo.tool.success", 1, tags)
	}
	return nil
}

// AfterCompaction records compaction metrics
func (h *MetricsHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	tags := map[string]string{"strategy": string(result.Strategy)}

	h.OnMetric("convo.compaction.original_tokens", float64(result.OriginalTokens), tags)
	h.OnMetric("convo.compaction.compacted_tokens", float64(result.CompactedTokens), tags)

	if result.OriginalTokens > 0 {
		h.OnMetric("convo.compaction.reduction_pct",
			float64(result.OriginalTokens-result.CompactedTokens)/float64(result.OriginalTokens)*100, tags)
	}
	return nil
}
