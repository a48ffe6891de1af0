package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Invocation describes a single requested tool run
type Invocation struct {
	// ID is the caller-assigned identifier correlating the result back to
	// the requesting message block
	ID string

	// Name is the registered tool name
	Name string

	// Input is the raw JSON input for the tool
	Input json.RawMessage
}

// Result is the outcome of one tool invocation
type Result struct {
	// ID echoes the invocation ID
	ID string

	// Name echoes the tool name
	Name string

	// Content is the tool output on success, or the error text on failure
	Content string

	// Err is non-nil when the invocation failed
	Err error

	// Duration is the wall-clock execution time
	Duration time.Duration
}

// IsError reports whether the invocation failed
func (r Result) IsError() bool {
	return r.Err != nil
}

// Executor runs tool invocations against a registry with a per-invocation
// timeout. Concurrent invocations run as independent tasks; each completion
// is observable as a discrete event in the order tools actually finish,
// never batched behind the slowest.
type Executor struct {
	registry *Registry
	timeout  time.Duration
}

// NewExecutor creates an executor over the given registry. A timeout of
// zero disables the per-invocation deadline.
func NewExecutor(registry *Registry, timeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		timeout:  timeout,
	}
}

// Execute runs a single invocation synchronously
func (e *Executor) Execute(ctx context.Context, inv Invocation) Result {
	start := time.Now()

	t, err := e.registry.Get(inv.Name)
	if err != nil {
		return Result{
			ID:       inv.ID,
			Name:     inv.Name,
			Content:  err.Error(),
			Err:      err,
			Duration: time.Since(start),
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	content, err := t.Execute(runCtx, inv.Input)
	if err != nil {
		// Only the executor's own deadline counts as a tool timeout; a
		// parent-context deadline is reported as-is.
		if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w: %q after %s", ErrExecutionTimeout, inv.Name, e.timeout)
		}
		return Result{
			ID:       inv.ID,
			Name:     inv.Name,
			Content:  err.Error(),
			Err:      err,
			Duration: time.Since(start),
		}
	}

	return Result{
		ID:       inv.ID,
		Name:     inv.Name,
		Content:  content,
		Duration: time.Since(start),
	}
}

// Launch starts all invocations concurrently and returns a channel that
// yields one Result per invocation in completion order. The channel is
// closed once every invocation has finished. A fast tool's result is
// delivered before a slow one's even when the slow tool was launched first.
func (e *Executor) Launch(ctx context.Context, invs []Invocation) <-chan Result {
	results := make(chan Result, len(invs))

	var wg sync.WaitGroup
	for _, inv := range invs {
		wg.Add(1)
		go func(inv Invocation) {
			defer wg.Done()
			results <- e.Execute(ctx, inv)
		}(inv)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
