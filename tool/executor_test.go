package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestExecutorExecute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	e := NewExecutor(r, time.Second)

	res := e.Execute(context.Background(), Invocation{
		ID:    "inv-1",
		Name:  "echo",
		Input: json.RawMessage(`{"text":"hello"}`),
	})
	if res.IsError() {
		t.Fatalf("Execute() error = %v", res.Err)
	}
	if res.Content != `{"text":"hello"}` {
		t.Errorf("Content = %q", res.Content)
	}
	if res.ID != "inv-1" {
		t.Errorf("ID = %q, want %q", res.ID, "inv-1")
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry(), time.Second)

	res := e.Execute(context.Background(), Invocation{ID: "inv-1", Name: "missing"})
	if !res.IsError() {
		t.Fatal("Execute() succeeded for unknown tool")
	}
	if !errors.Is(res.Err, ErrToolNotFound) {
		t.Errorf("Err = %v, want ErrToolNotFound", res.Err)
	}
	if res.Content == "" {
		t.Error("Content should carry the error text")
	}
}

func TestExecutorToolError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	failing := NewFuncTool("fail", "always fails", EmptySchema(), func(context.Context, json.RawMessage) (string, error) {
		return "", boom
	})
	if err := r.Register(failing); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	e := NewExecutor(r, time.Second)

	res := e.Execute(context.Background(), Invocation{ID: "inv-1", Name: "fail"})
	if !errors.Is(res.Err, boom) {
		t.Errorf("Err = %v, want boom", res.Err)
	}
	if res.Content != "boom" {
		t.Errorf("Content = %q, want %q", res.Content, "boom")
	}
}

func TestExecutorTimeout(t *testing.T) {
	r := NewRegistry()
	slow := NewFuncTool("slow", "sleeps past the deadline", EmptySchema(), func(ctx context.Context, _ json.RawMessage) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	if err := r.Register(slow); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	e := NewExecutor(r, 20*time.Millisecond)

	res := e.Execute(context.Background(), Invocation{ID: "inv-1", Name: "slow"})
	if !errors.Is(res.Err, ErrExecutionTimeout) {
		t.Errorf("Err = %v, want ErrExecutionTimeout", res.Err)
	}
}

func TestExecutorParentDeadlineIsNotAToolTimeout(t *testing.T) {
	r := NewRegistry()
	slow := NewFuncTool("slow", "sleeps past the deadline", EmptySchema(), func(ctx context.Context, _ json.RawMessage) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	if err := r.Register(slow); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// The caller's deadline expires long before the per-invocation timeout.
	e := NewExecutor(r, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := e.Execute(ctx, Invocation{ID: "inv-1", Name: "slow"})
	if errors.Is(res.Err, ErrExecutionTimeout) {
		t.Error("parent-context deadline must not be reported as an execution timeout")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded", res.Err)
	}
}

func TestLaunchCompletionOrder(t *testing.T) {
	r := NewRegistry()

	// Tool A blocks until released; tool B finishes immediately. B's
	// result must arrive first even though A is launched first.
	release := make(chan struct{})
	slowA := NewFuncTool("slow-a", "waits for release", EmptySchema(), func(ctx context.Context, _ json.RawMessage) (string, error) {
		select {
		case <-release:
			return "a done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	fastB := NewFuncTool("fast-b", "returns at once", EmptySchema(), func(context.Context, json.RawMessage) (string, error) {
		return "b done", nil
	})
	if err := r.Register(slowA); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(fastB); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	e := NewExecutor(r, 5*time.Second)
	results := e.Launch(context.Background(), []Invocation{
		{ID: "a", Name: "slow-a"},
		{ID: "b", Name: "fast-b"},
	})

	first := <-results
	if first.ID != "b" {
		t.Fatalf("first result ID = %q, want %q", first.ID, "b")
	}

	close(release)
	second := <-results
	if second.ID != "a" {
		t.Fatalf("second result ID = %q, want %q", second.ID, "a")
	}

	if _, open := <-results; open {
		t.Error("results channel should be closed after all invocations finish")
	}
}

func TestLaunchEmpty(t *testing.T) {
	e := NewExecutor(NewRegistry(), time.Second)
	results := e.Launch(context.Background(), nil)
	if _, open := <-results; open {
		t.Error("results channel should close immediately with no invocations")
	}
}
