package convopg

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/hooks"
	convert "github.com/stateloop/convopg/internal/anthropic"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/storage"
	"github.com/stateloop/convopg/streaming"
	"github.com/stateloop/convopg/tool"
	"github.com/stateloop/convopg/types"
)

// Conversation orchestrates one stateful conversation: the dispatch
// pipeline, compaction policy, tool execution, streaming, hooks, and
// optional persistence. All mutations flow through the single state
// manager, so concurrent streaming and tool completion stay ordered.
type Conversation struct {
	cfg       *internalConfig
	states    *state.Manager
	compactor *compaction.Manager
	registry  *tool.Registry
	executor  *tool.Executor
	counter   compaction.TokenCounter
	hookReg   *hooks.Registry
	store     storage.Store
	logger    *log.Logger

	mu        sync.Mutex
	streaming bool
}

// New creates a conversation with a fresh session
func New(cfg Config, opts ...Option) (*Conversation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}

	return newConversation(ic, state.New(ic.maxContextTokens))
}

// Load restores a conversation from a stored snapshot. The options must
// include WithStore; the same store is used for subsequent saves.
func Load(ctx context.Context, cfg Config, sessionID string, opts ...Option) (*Conversation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}
	if ic.store == nil {
		return nil, NewConvoErrorWithSession("Load", sessionID, ErrNoStore)
	}

	snapshot, err := ic.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, NewConvoErrorWithSession("Load", sessionID, err)
	}

	return newConversation(ic, snapshot)
}

func newConversation(ic *internalConfig, initial *state.ConversationState) (*Conversation, error) {
	managerOpts := []state.ManagerOption{
		state.WithLogger(ic.logger),
	}
	if ic.historyLimit > 0 {
		managerOpts = append(managerOpts, state.WithHistoryLimit(ic.historyLimit))
	}
	if len(ic.middleware) > 0 {
		managerOpts = append(managerOpts, state.WithMiddleware(ic.middleware...))
	}

	states := state.NewManager(initial, managerOpts...)
	for _, sub := range ic.subscribers {
		states.Subscribe(sub)
	}

	counter := ic.counter
	if counter == nil {
		counter = compaction.NewAnthropicCounter(ic.client, ic.model)
	}
	summarizer := ic.summarizer
	if summarizer == nil {
		summarizer = compaction.NewAnthropicSummarizer(ic.client, ic.compactionCfg.SummarizerModel, ic.compactionCfg.MaxSummaryTokens)
	}

	compactor, err := compaction.NewManager(summarizer, counter, ic.compactionCfg)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	for _, t := range ic.tools {
		if t.InputSchema().Type != "object" {
			return nil, NewConvoError("New", ErrInvalidConfig).
				WithContext("tool", t.Name()).
				WithContext("reason", "schema type must be 'object'")
		}
		if err := registry.Register(t); err != nil {
			return nil, NewConvoError("New", err)
		}
	}

	c := &Conversation{
		cfg:       ic,
		states:    states,
		compactor: compactor,
		registry:  registry,
		executor:  tool.NewExecutor(registry, ic.toolTimeout),
		counter:   counter,
		hookReg:   hooks.NewRegistry(),
		store:     ic.store,
		logger:    ic.logger,
	}

	if ic.autoCompaction {
		states.Subscribe(c.autoCompactionSubscriber)
	}

	return c, nil
}

// SessionID returns the conversation's session identifier
func (c *Conversation) SessionID() string {
	return c.states.State().SessionID
}

// State returns the current conversation snapshot
func (c *Conversation) State() *state.ConversationState {
	return c.states.State()
}

// StateManager exposes the dispatch pipeline for advanced callers
func (c *Conversation) StateManager() *state.Manager {
	return c.states
}

// Hooks returns the hook registry for this conversation
func (c *Conversation) Hooks() *hooks.Registry {
	return c.hookReg
}

// Tools returns the tool registry for this conversation
func (c *Conversation) Tools() *tool.Registry {
	return c.registry
}

// AddMessage counts the message's tokens if it carries no usage, runs
// before-message hooks, and dispatches it into the conversation.
func (c *Conversation) AddMessage(ctx context.Context, msg *types.Message) (*state.ConversationState, error) {
	if msg == nil {
		return c.states.State(), NewConvoError("AddMessage", fmt.Errorf("message is required"))
	}

	if msg.Usage.Total() == 0 {
		usage, err := c.counter.CountMessage(ctx, msg)
		if err != nil {
			return c.states.State(), NewConvoErrorWithSession("AddMessage", c.SessionID(), err)
		}
		msg = msg.WithUsage(usage)
	}

	if err := c.hookReg.TriggerBeforeMessage(ctx, msg); err != nil {
		return c.states.State(), NewConvoErrorWithSession("AddMessage", c.SessionID(), err)
	}

	newState, err := c.states.Dispatch(ctx, state.AddMessage{Message: msg})
	if err != nil {
		return newState, err
	}

	if hookErr := c.hookReg.TriggerDispatch(ctx, state.AddMessage{Message: msg}, newState); hookErr != nil {
		c.logger.Printf("[ConvoPG] dispatch hook failed: %v", hookErr)
	}
	return newState, nil
}

// AddUserMessage adds a user text message
func (c *Conversation) AddUserMessage(ctx context.Context, text string) (*state.ConversationState, error) {
	return c.AddMessage(ctx, types.NewUserMessage(text))
}

// AddAssistantMessage adds an assistant text message
func (c *Conversation) AddAssistantMessage(ctx context.Context, text string) (*state.ConversationState, error) {
	return c.AddMessage(ctx, types.NewAssistantMessage([]types.ContentBlock{types.NewTextBlock(text)}))
}

// AddToolResult adds a tool result message and clears the matching
// in-flight execution
func (c *Conversation) AddToolResult(ctx context.Context, toolUseID, content string, isError bool) (*state.ConversationState, error) {
	newState, err := c.AddMessage(ctx, types.NewToolResultMessage(toolUseID, content, isError))
	if err != nil {
		return newState, err
	}
	return c.states.Dispatch(ctx, state.CompleteToolExecution{ID: toolUseID})
}

// SetPreference merges one preference into the conversation state
func (c *Conversation) SetPreference(ctx context.Context, key, value string) (*state.ConversationState, error) {
	return c.states.Dispatch(ctx, state.UpdatePreferences{Preferences: map[string]string{key: value}})
}

// SetPhase transitions the conversation lifecycle phase
func (c *Conversation) SetPhase(ctx context.Context, phase state.Phase) (*state.ConversationState, error) {
	return c.states.Dispatch(ctx, state.UpdatePhase{Phase: phase})
}

// CompactNow forces a compaction cycle regardless of the automatic
// trigger. Returns ErrCompactionNotNeeded when there is nothing to compact.
func (c *Conversation) CompactNow(ctx context.Context) (*compaction.Result, error) {
	sessionID := c.SessionID()

	if err := c.hookReg.TriggerBeforeCompaction(ctx, sessionID); err != nil {
		return nil, NewConvoErrorWithSession("CompactNow", sessionID, err)
	}

	result, err := c.compactor.Compact(ctx, c.states)
	if err != nil {
		return nil, err
	}

	if hookErr := c.hookReg.TriggerAfterCompaction(ctx, result); hookErr != nil {
		c.logger.Printf("[ConvoPG] after-compaction hook failed: %v", hookErr)
	}
	c.recordCompaction(ctx, sessionID, result)

	return result, nil
}

// Stats reports current window and compaction state
func (c *Conversation) Stats() compaction.Stats {
	return c.compactor.StatsFor(c.states.State())
}

// Save persists the current snapshot. Requires a configured store.
func (c *Conversation) Save(ctx context.Context) error {
	if c.store == nil {
		return NewConvoErrorWithSession("Save", c.SessionID(), ErrNoStore)
	}
	if err := c.store.SaveSnapshot(ctx, c.states.State()); err != nil {
		return NewConvoErrorWithSession("Save", c.SessionID(), err)
	}
	return nil
}

// CompactionHistory returns the persisted compaction events for this
// session. Requires a configured store.
func (c *Conversation) CompactionHistory(ctx context.Context) ([]*storage.CompactionEvent, error) {
	if c.store == nil {
		return nil, NewConvoErrorWithSession("CompactionHistory", c.SessionID(), ErrNoStore)
	}
	return c.store.GetCompactionHistory(ctx, c.SessionID())
}

// Stream sends the prompt to the model and returns the live session. Text
// arrives on the session's event channel in production order; requested
// tools run concurrently and their results are committed in completion
// order. Only one stream may be live per conversation.
func (c *Conversation) Stream(ctx context.Context, prompt string) (*streaming.Session, error) {
	current := c.states.State()
	if current.Phase.IsTerminal() {
		return nil, NewConvoErrorWithSession("Stream", current.SessionID, ErrConversationClosed)
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return nil, NewConvoErrorWithSession("Stream", current.SessionID, ErrStreamActive)
	}
	c.streaming = true
	c.mu.Unlock()

	finish := func() {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}

	if _, err := c.AddUserMessage(ctx, prompt); err != nil {
		finish()
		return nil, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.model),
		MaxTokens: c.cfg.maxTokens,
		Messages:  convert.ToMessageParams(c.states.State().Messages),
	}
	if c.cfg.systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: c.cfg.systemPrompt}}
	}
	if tools := c.registry.ToAnthropicTools(); len(tools) > 0 {
		params.Tools = tools
	}

	stream := c.cfg.client.Messages.NewStreaming(ctx, params)
	session := streaming.NewSession(c.states, c.executor)
	session.ObserveTools(func(ctx context.Context, toolName string, input json.RawMessage, output string, err error) {
		if hookErr := c.hookReg.TriggerToolCall(ctx, toolName, input, output, err); hookErr != nil {
			c.logger.Printf("[ConvoPG] tool hook failed (session=%s): %v", current.SessionID, hookErr)
		}
	})

	go func() {
		defer finish()
		if err := session.Run(ctx, stream); err != nil {
			c.logger.Printf("[ConvoPG] stream ended with error (session=%s): %v", current.SessionID, err)
		}
	}()

	return session, nil
}

// autoCompactionSubscriber runs after each committed message and starts a
// background compaction cycle when the window crosses the trigger. The
// compactor's own in-progress guard makes overlapping attempts harmless.
func (c *Conversation) autoCompactionSubscriber(action state.Action, newState *state.ConversationState) {
	if action.Kind() != state.KindAddMessage {
		return
	}
	if c.compactor.Compacting() || !c.compactor.ShouldCompact(newState) {
		return
	}

	go func() {
		if _, err := c.CompactNow(context.Background()); err != nil {
			c.logger.Printf("[ConvoPG] automatic compaction failed (session=%s): %v", newState.SessionID, err)
		}
	}()
}

// recordCompaction persists the compaction event and refreshed snapshot.
// Persistence failures are logged, not surfaced; the in-memory state is
// already committed.
func (c *Conversation) recordCompaction(ctx context.Context, sessionID string, result *compaction.Result) {
	if c.store == nil {
		return
	}

	preservedIDs := make([]string, 0, len(result.Preserved))
	for _, msg := range result.Preserved {
		preservedIDs = append(preservedIDs, msg.ID)
	}

	event := &storage.CompactionEvent{
		SessionID:           sessionID,
		Strategy:            string(result.Strategy),
		OriginalTokens:      result.OriginalTokens,
		CompactedTokens:     result.CompactedTokens,
		MessagesRemoved:     result.MessagesRemoved,
		SummaryContent:      result.Summary.Text(),
		PreservedMessageIDs: preservedIDs,
		ModelUsed:           c.cfg.compactionCfg.SummarizerModel,
		DurationMs:          result.Duration.Milliseconds(),
		ArchivedMessages:    result.Removed,
	}
	if err := c.store.SaveCompactionEvent(ctx, event); err != nil {
		c.logger.Printf("[ConvoPG] failed to record compaction event (session=%s): %v", sessionID, err)
	}
	if err := c.store.SaveSnapshot(ctx, c.states.State()); err != nil {
		c.logger.Printf("[ConvoPG] failed to save snapshot after compaction (session=%s): %v", sessionID, err)
	}
}
