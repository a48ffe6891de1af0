package convopg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/storage"
	"github.com/stateloop/convopg/tool"
	"github.com/stateloop/convopg/types"
)

const testModel = "claude-3-5-sonnet-20241022"

func testConfig() Config {
	client := anthropic.NewClient()
	return Config{
		Client: &client,
		Model:  testModel,
	}
}

// fixedCounter assigns the same token count to every message so tests can
// predict window utilization without an API.
type fixedCounter struct {
	tokens int
}

func (c fixedCounter) CountText(_ context.Context, _ string) (int, error) {
	return c.tokens, nil
}

func (c fixedCounter) CountMessage(_ context.Context, _ *types.Message) (types.Usage, error) {
	return types.Usage{InputTokens: c.tokens}, nil
}

type fixedSummarizer struct {
	summary string
	err     error
}

func (s fixedSummarizer) Summarize(_ context.Context, _ compaction.SummaryRequest) (string, error) {
	return s.summary, s.err
}

// memoryStore is an in-memory Store for exercising persistence paths
// without a database.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*state.ConversationState
	events    []*storage.CompactionEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]*state.ConversationState)}
}

func (m *memoryStore) SaveSnapshot(_ context.Context, s *state.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.SessionID] = s
	return nil
}

func (m *memoryStore) LoadSnapshot(_ context.Context, sessionID string) (*state.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[sessionID]
	if !ok {
		return nil, storage.ErrSnapshotNotFound
	}
	return s, nil
}

func (m *memoryStore) DeleteSnapshot(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}

func (m *memoryStore) ListSessions(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		out = append(out, id)
	}
	return out, nil
}

func (m *memoryStore) SaveCompactionEvent(_ context.Context, event *storage.CompactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStore) GetCompactionHistory(_ context.Context, sessionID string) ([]*storage.CompactionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.CompactionEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func quietOpts(extra ...Option) []Option {
	opts := []Option{
		WithLogger(log.New(io.Discard, "", 0)),
		WithTokenCounter(fixedCounter{tokens: 100}),
		WithSummarizer(fixedSummarizer{summary: "Condensed history."}),
		WithAutoCompaction(false),
	}
	return append(opts, extra...)
}

func TestNewValidation(t *testing.T) {
	t.Run("missing client", func(t *testing.T) {
		_, err := New(Config{Model: testModel})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("missing model", func(t *testing.T) {
		client := anthropic.NewClient()
		_, err := New(Config{Client: &client})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("bad option", func(t *testing.T) {
		_, err := New(testConfig(), WithMaxContextTokens(0))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("empty summarizer model", func(t *testing.T) {
		_, err := New(testConfig(), WithSummarizerModel(""))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("non-object tool schema", func(t *testing.T) {
		bad := tool.NewFuncTool("bad", "broken tool", tool.ToolSchema{Type: "string"},
			func(context.Context, json.RawMessage) (string, error) { return "", nil })
		_, err := New(testConfig(), WithTools(bad))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestNewDefaults(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if conv.SessionID() == "" {
		t.Error("new conversation must have a session ID")
	}
	stats := conv.Stats()
	if stats.MaxTokens != 200000 {
		t.Errorf("MaxTokens = %d, want the model's 200000", stats.MaxTokens)
	}
	if stats.CurrentTokens != 0 || stats.MessageCount != 0 {
		t.Errorf("fresh conversation stats = %+v, want empty", stats)
	}
	if conv.State().Phase != state.PhaseActive {
		t.Errorf("Phase = %q, want active", conv.State().Phase)
	}
}

func TestAddUserMessage(t *testing.T) {
	conv, err := New(testConfig(), quietOpts(WithMaxContextTokens(1000))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s, err := conv.AddUserMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}

	if s.MessageCount() != 1 {
		t.Errorf("MessageCount() = %d, want 1", s.MessageCount())
	}
	if s.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", s.TurnCount)
	}
	if s.Window.Consumed() != 100 {
		t.Errorf("Consumed() = %d, want 100 from the counter", s.Window.Consumed())
	}
	if s.Messages[0].Usage.Total() != 100 {
		t.Errorf("message usage = %d, want counted 100", s.Messages[0].Usage.Total())
	}
}

func TestAddMessageKeepsProvidedUsage(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	msg := types.NewUserMessage("hello").WithUsage(types.Usage{InputTokens: 7})
	s, err := conv.AddMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if s.Window.Consumed() != 7 {
		t.Errorf("Consumed() = %d, want the provided 7, not a recount", s.Window.Consumed())
	}
}

func TestAddMessageNil(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := conv.AddMessage(context.Background(), nil); err == nil {
		t.Error("AddMessage(nil) must fail")
	}
}

func TestBeforeMessageHookBlocks(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rejected := errors.New("rejected by policy")
	conv.Hooks().OnBeforeMessage(func(_ context.Context, _ *types.Message) error {
		return rejected
	})

	_, err = conv.AddUserMessage(context.Background(), "blocked")
	if !errors.Is(err, rejected) {
		t.Fatalf("AddUserMessage() error = %v, want the hook error", err)
	}
	if conv.State().MessageCount() != 0 {
		t.Error("blocked message must not enter the conversation")
	}
}

func TestAddToolResultClearsPending(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if _, err := conv.StateManager().Dispatch(ctx, state.BeginToolExecution{
		Execution: state.ToolExecution{ID: "tu-1", ToolName: "search"},
	}); err != nil {
		t.Fatalf("Dispatch(BeginToolExecution) error = %v", err)
	}

	s, err := conv.AddToolResult(ctx, "tu-1", "found it", false)
	if err != nil {
		t.Fatalf("AddToolResult() error = %v", err)
	}
	if len(s.PendingTools) != 0 {
		t.Errorf("PendingTools = %v, want cleared", s.PendingTools)
	}
	if s.Messages[s.MessageCount()-1].Role != types.RoleTool {
		t.Error("last message must be the tool result")
	}
}

func TestSetPreferenceAndPhase(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	s, err := conv.SetPreference(ctx, "tone", "concise")
	if err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	if s.Preferences["tone"] != "concise" {
		t.Errorf("Preferences = %v, want tone=concise", s.Preferences)
	}

	if _, err := conv.SetPhase(ctx, state.PhaseCompleted); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}
	if _, err := conv.SetPhase(ctx, state.PhaseActive); err == nil {
		t.Error("reopening a completed conversation must fail")
	}
}

func TestStreamRejectsTerminalPhase(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := conv.SetPhase(context.Background(), state.PhaseCompleted); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}

	_, err = conv.Stream(context.Background(), "anyone there?")
	if !errors.Is(err, ErrConversationClosed) {
		t.Errorf("Stream() error = %v, want ErrConversationClosed", err)
	}
}

func TestCompactNow(t *testing.T) {
	store := newMemoryStore()
	conv, err := New(testConfig(), quietOpts(
		WithMaxContextTokens(1000),
		WithMinCompactionTokens(100),
		WithPreserveLastN(2),
		// Keep the target low so compaction keeps only the critical set.
		WithTargetUtilization(0.25),
		WithStore(store),
	)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		if _, err := conv.AddUserMessage(ctx, fmt.Sprintf("message number %d", i)); err != nil {
			t.Fatalf("AddUserMessage() error = %v", err)
		}
	}

	var afterResult *compaction.Result
	conv.Hooks().OnAfterCompaction(func(_ context.Context, r *compaction.Result) error {
		afterResult = r
		return nil
	})

	result, err := conv.CompactNow(ctx)
	if err != nil {
		t.Fatalf("CompactNow() error = %v", err)
	}

	if result.CompactedTokens >= result.OriginalTokens {
		t.Errorf("CompactedTokens = %d, want below %d", result.CompactedTokens, result.OriginalTokens)
	}
	if conv.State().MessageCount() != 3 {
		t.Errorf("MessageCount() = %d, want 3 (summary + 2 preserved)", conv.State().MessageCount())
	}
	if !conv.State().Messages[0].IsSummary {
		t.Error("first message must be the summary")
	}
	if afterResult != result {
		t.Error("after-compaction hook must receive the result")
	}

	history, err := conv.CompactionHistory(ctx)
	if err != nil {
		t.Fatalf("CompactionHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	event := history[0]
	if event.Strategy != string(result.Strategy) || event.MessagesRemoved != 7 {
		t.Errorf("recorded event = %+v, want strategy %q and 7 removed", event, result.Strategy)
	}
	if len(event.PreservedMessageIDs) != 2 {
		t.Errorf("PreservedMessageIDs = %v, want 2 entries", event.PreservedMessageIDs)
	}
	if len(event.ArchivedMessages) != 7 {
		t.Errorf("ArchivedMessages holds %d messages, want the 7 summarized", len(event.ArchivedMessages))
	}
	if _, ok := store.snapshots[conv.SessionID()]; !ok {
		t.Error("compaction must refresh the stored snapshot")
	}
}

func TestCompactNowNotNeeded(t *testing.T) {
	conv, err := New(testConfig(), quietOpts(WithMaxContextTokens(10000))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := conv.AddUserMessage(context.Background(), "tiny"); err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}

	_, err = conv.CompactNow(context.Background())
	if !errors.Is(err, compaction.ErrCompactionNotNeeded) {
		t.Errorf("CompactNow() error = %v, want ErrCompactionNotNeeded", err)
	}
}

func TestBeforeCompactionHookBlocks(t *testing.T) {
	conv, err := New(testConfig(), quietOpts(
		WithMaxContextTokens(1000),
		WithMinCompactionTokens(100),
		WithPreserveLastN(2),
	)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		if _, err := conv.AddUserMessage(ctx, "filler message"); err != nil {
			t.Fatalf("AddUserMessage() error = %v", err)
		}
	}

	blocked := errors.New("not now")
	conv.Hooks().OnBeforeCompaction(func(_ context.Context, _ string) error {
		return blocked
	})

	before := conv.State()
	if _, err := conv.CompactNow(ctx); !errors.Is(err, blocked) {
		t.Fatalf("CompactNow() error = %v, want the hook error", err)
	}
	if conv.State() != before {
		t.Error("blocked compaction must not change state")
	}
}

func TestSaveRequiresStore(t *testing.T) {
	conv, err := New(testConfig(), quietOpts()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := conv.Save(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Errorf("Save() error = %v, want ErrNoStore", err)
	}
	if _, err := conv.CompactionHistory(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Errorf("CompactionHistory() error = %v, want ErrNoStore", err)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	original, err := New(testConfig(), quietOpts(WithStore(store))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := original.AddUserMessage(ctx, "persist me"); err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	if err := original.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored, err := Load(ctx, testConfig(), original.SessionID(), quietOpts(WithStore(store))...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if restored.SessionID() != original.SessionID() {
		t.Errorf("SessionID = %q, want %q", restored.SessionID(), original.SessionID())
	}
	if restored.State().MessageCount() != 1 {
		t.Errorf("restored MessageCount() = %d, want 1", restored.State().MessageCount())
	}
}

func TestLoadRequiresStore(t *testing.T) {
	_, err := Load(context.Background(), testConfig(), "some-session", quietOpts()...)
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("Load() error = %v, want ErrNoStore", err)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	_, err := Load(context.Background(), testConfig(), "missing",
		quietOpts(WithStore(newMemoryStore()))...)
	if !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("Load() error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestGetModelInfo(t *testing.T) {
	if info := GetModelInfo(testModel); info.DefaultMaxTokens != 8192 {
		t.Errorf("DefaultMaxTokens = %d, want 8192", info.DefaultMaxTokens)
	}
	if info := GetModelInfo("some-future-model"); info.MaxContextTokens != 200000 {
		t.Errorf("unknown model MaxContextTokens = %d, want 200000 default", info.MaxContextTokens)
	}
}
