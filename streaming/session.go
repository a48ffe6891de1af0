package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/tool"
	"github.com/stateloop/convopg/types"
)

var (
	// ErrStreamInProgress indicates the session already has a live stream.
	// A conversation carries at most one response stream at a time.
	ErrStreamInProgress = errors.New("stream already in progress")

	// ErrSessionAborted indicates the caller aborted the session.
	ErrSessionAborted = errors.New("session aborted")
)

// Source is the provider stream the session consumes. The Anthropic SDK's
// ssestream.Stream satisfies it.
type Source interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

// ToolObserver is notified when a tool invocation finishes, before the
// result is committed to conversation state.
type ToolObserver func(ctx context.Context, toolName string, input json.RawMessage, output string, err error)

// Session owns the single response stream of a conversation. Text chunks
// are delivered to the event channel in production order. Tool invocations
// requested by the response run as independent goroutines; their results
// enter the conversation through the dispatch pipeline in the order the
// tools finish, not the order they were launched. Abort stops delivery;
// in-flight tools may run to completion but their results are discarded.
type Session struct {
	states   *state.Manager
	executor *tool.Executor

	mu      sync.Mutex
	running bool
	aborted bool
	cancel  context.CancelFunc

	observeTool ToolObserver

	events chan Event
}

// NewSession creates a session bound to a state manager and tool executor
func NewSession(states *state.Manager, executor *tool.Executor) *Session {
	return &Session{
		states:   states,
		executor: executor,
		events:   make(chan Event, 64),
	}
}

// ObserveTools registers an observer called for each finished tool
// invocation. Must be set before Run.
func (s *Session) ObserveTools(fn ToolObserver) {
	s.observeTool = fn
}

// Events returns the channel the session delivers events on. The channel
// is closed when Run returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Abort stops stream delivery. In-flight tool executions may finish but
// their results never reach the conversation state.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aborted = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Aborted reports whether the session was aborted
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Run consumes the provider stream to completion: it forwards text in
// production order, commits the accumulated assistant message, then runs
// any requested tool invocations and commits each result as it completes.
// Run returns when the stream and all tool integrations are done, or on
// the first error, and closes the event channel either way.
func (s *Session) Run(ctx context.Context, source Source) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrStreamInProgress
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.events)
	}()

	acc := NewAccumulator()

	for source.Next() {
		if s.Aborted() {
			s.emit(runCtx, &AbortedEvent{})
			return ErrSessionAborted
		}
		for _, ev := range acc.Process(source.Current()) {
			s.emit(runCtx, ev)
		}
	}
	if err := source.Err(); err != nil {
		s.emit(runCtx, &ErrorEvent{Err: err})
		return err
	}
	if s.Aborted() {
		s.emit(runCtx, &AbortedEvent{})
		return ErrSessionAborted
	}

	msg := acc.Message()
	if _, err := s.states.Dispatch(runCtx, state.AddMessage{Message: msg}); err != nil {
		s.emit(runCtx, &ErrorEvent{Err: err})
		return err
	}

	return s.runTools(runCtx, msg)
}

// runTools launches the invocations requested by the assistant message and
// integrates each completion into state as it arrives.
func (s *Session) runTools(ctx context.Context, msg *types.Message) error {
	invs := invocationsFrom(msg)
	if len(invs) == 0 {
		return nil
	}

	for _, inv := range invs {
		_, err := s.states.Dispatch(ctx, state.BeginToolExecution{
			Execution: state.ToolExecution{ID: inv.ID, ToolName: inv.Name, StartedAt: time.Now()},
		})
		if err != nil {
			s.emit(ctx, &ErrorEvent{Err: err})
			return err
		}
	}

	inputs := make(map[string]json.RawMessage, len(invs))
	for _, inv := range invs {
		inputs[inv.ID] = inv.Input
	}

	results := s.executor.Launch(ctx, invs)
	var firstErr error

	for res := range results {
		if s.Aborted() {
			// Teardown discards the result. The goroutine has already
			// finished; nothing is written after this point.
			continue
		}

		if s.observeTool != nil {
			s.observeTool(ctx, res.Name, inputs[res.ID], res.Content, res.Err)
		}

		resultMsg := types.NewToolResultMessage(res.ID, res.Content, res.IsError())
		if _, err := s.states.Dispatch(ctx, state.AddMessage{Message: resultMsg}); err != nil && firstErr == nil {
			firstErr = err
			s.emit(ctx, &ErrorEvent{Err: err})
			continue
		}
		if _, err := s.states.Dispatch(ctx, state.CompleteToolExecution{ID: res.ID}); err != nil && firstErr == nil {
			firstErr = err
			s.emit(ctx, &ErrorEvent{Err: err})
			continue
		}

		s.emit(ctx, &ToolResultEvent{
			ToolID:   res.ID,
			ToolName: res.Name,
			Content:  res.Content,
			IsError:  res.IsError(),
		})
	}

	if s.Aborted() {
		s.emit(ctx, &AbortedEvent{})
		return ErrSessionAborted
	}
	return firstErr
}

// emit delivers an event to the consumer. Delivery is lossless: when the
// buffer is full emit blocks until the consumer catches up, the session is
// aborted, or the context ends.
func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// invocationsFrom extracts tool invocations from an assistant message
func invocationsFrom(msg *types.Message) []tool.Invocation {
	var invs []tool.Invocation
	for _, block := range msg.Content {
		if block.Type != types.ContentTypeToolUse {
			continue
		}
		invs = append(invs, tool.Invocation{
			ID:    block.ToolUseID,
			Name:  block.ToolName,
			Input: block.ToolInputRaw,
		})
	}
	return invs
}
