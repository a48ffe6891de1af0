package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoTool(name string) Tool {
	return NewFuncTool(name, "echoes its input", EmptySchema(), func(_ context.Context, input json.RawMessage) (string, error) {
		return string(input), nil
	})
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Get("echo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name() != "echo" {
		t.Errorf("Name() = %q, want %q", got.Name(), "echo")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := r.Register(echoTool("echo"))
	if !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("Register() error = %v, want ErrDuplicateTool", err)
	}
}

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Get() error = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryDisableEnable(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Disable("echo"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	_, err := r.Get("echo")
	if !errors.Is(err, ErrToolDisabled) {
		t.Errorf("Get() after Disable error = %v, want ErrToolDisabled", err)
	}

	if err := r.Enable("echo"); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if _, err := r.Get("echo"); err != nil {
		t.Errorf("Get() after Enable error = %v", err)
	}
}

func TestRegistryEnabledNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}
	if err := r.Disable("beta"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	got := r.EnabledNames()
	want := []string{"alpha", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("EnabledNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EnabledNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r.Unregister("echo")
	if _, err := r.Get("echo"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Get() after Unregister error = %v, want ErrToolNotFound", err)
	}

	// Unregistering an unknown name is a no-op.
	r.Unregister("missing")
}
