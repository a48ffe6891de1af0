package state

import "github.com/stateloop/convopg/types"

// Kind identifies an action variant. The variant set is closed: the reducer
// maps every kind to a defined transition and rejects anything else.
type Kind string

const (
	// KindAddMessage appends a message to the conversation
	KindAddMessage Kind = "add_message"

	// KindApplyCompaction replaces the message sequence with a compacted one
	KindApplyCompaction Kind = "apply_compaction"

	// KindUpdatePreferences merges user preferences into the state
	KindUpdatePreferences Kind = "update_preferences"

	// KindBeginToolExecution records a tool invocation as in-flight
	KindBeginToolExecution Kind = "begin_tool_execution"

	// KindCompleteToolExecution removes a tool invocation from the in-flight map
	KindCompleteToolExecution Kind = "complete_tool_execution"

	// KindUpdateContextLimit changes the configured context window maximum
	KindUpdateContextLimit Kind = "update_context_limit"

	// KindUpdatePhase moves the conversation to a new lifecycle phase
	KindUpdatePhase Kind = "update_phase"

	// KindSetMetadata sets one session metadata key
	KindSetMetadata Kind = "set_metadata"
)

// Action is the sole input to state transitions
type Action interface {
	Kind() Kind
}

// AddMessage appends a message to the conversation
type AddMessage struct {
	Message *types.Message
}

func (AddMessage) Kind() Kind { return KindAddMessage }

// ApplyCompaction replaces the message sequence with
// [Summary, Preserved...] and resets in-flight tool tracking. BasisLen is
// the message count of the snapshot the compaction was computed from;
// messages committed past it while the summarizer ran are re-appended after
// the preserved set rather than lost.
type ApplyCompaction struct {
	Summary   *types.Message
	Preserved []*types.Message
	BasisLen  int
}

func (ApplyCompaction) Kind() Kind { return KindApplyCompaction }

// UpdatePreferences merges the given preferences into the state
type UpdatePreferences struct {
	Preferences map[string]string
}

func (UpdatePreferences) Kind() Kind { return KindUpdatePreferences }

// BeginToolExecution records a tool invocation as in-flight
type BeginToolExecution struct {
	Execution ToolExecution
}

func (BeginToolExecution) Kind() Kind { return KindBeginToolExecution }

// CompleteToolExecution removes a tool invocation from the in-flight map
type CompleteToolExecution struct {
	ID string
}

func (CompleteToolExecution) Kind() Kind { return KindCompleteToolExecution }

// UpdateContextLimit changes the configured context window maximum
type UpdateContextLimit struct {
	MaxTokens int
}

func (UpdateContextLimit) Kind() Kind { return KindUpdateContextLimit }

// UpdatePhase moves the conversation to a new lifecycle phase
type UpdatePhase struct {
	Phase Phase
}

func (UpdatePhase) Kind() Kind { return KindUpdatePhase }

// SetMetadata sets one session metadata key
type SetMetadata struct {
	Key   string
	Value any
}

func (SetMetadata) Kind() Kind { return KindSetMetadata }
