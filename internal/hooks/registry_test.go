package hooks

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	handler := &Handler{
		ID:       "test-handler",
		Priority: 100,
		Source:   "test",
		Handler:  func(ctx context.Context, hookCtx *Context) (*Result, error) { return ContinueResult(), nil },
		Enabled:  true,
	}

	if err := r.Register(HookBeforeToolCall, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handlers := r.GetHandlers(HookBeforeToolCall)
	if len(handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(handlers))
	}
	if handlers[0].ID != "test-handler" {
		t.Errorf("expected ID 'test-handler', got '%s'", handlers[0].ID)
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(HookMessageReceived, &Handler{ID: "dup", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		hookType HookType
		handler  *Handler
		want     error
	}{
		{"duplicate id", HookMessageReceived, &Handler{ID: "dup"}, ErrHandlerExists},
		{"invalid type", HookType("before_message"), &Handler{ID: "x"}, ErrHookTypeInvalid},
		{"empty id", HookMessageReceived, &Handler{}, ErrHandlerNotFound},
		{"nil handler", HookMessageReceived, nil, ErrHandlerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.hookType, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry_SameIDOnDifferentTypes(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(HookBeforeToolCall, &Handler{ID: "bridge"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(HookToolResultPersist, &Handler{ID: "bridge"}); err != nil {
		t.Fatalf("same id on another hook type should be allowed: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 handlers, got %d", r.Count())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	_ = r.Register(HookBeforeToolCall, &Handler{ID: "a"})
	_ = r.Register(HookBeforeToolCall, &Handler{ID: "b"})

	if err := r.Unregister(HookBeforeToolCall, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handlers := r.GetHandlers(HookBeforeToolCall)
	if len(handlers) != 1 || handlers[0].ID != "b" {
		t.Errorf("unexpected handlers after unregister: %v", handlers)
	}

	if err := r.Unregister(HookBeforeToolCall, "a"); !errors.Is(err, ErrHandlerNotFound) {
		t.Errorf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestRegistry_PriorityOrdering(t *testing.T) {
	r := NewRegistry()

	for _, h := range []*Handler{
		{ID: "low", Priority: 0},
		{ID: "high", Priority: 100},
		{ID: "medium-1", Priority: 50},
		{ID: "medium-2", Priority: 50},
	} {
		if err := r.Register(HookMessageReceived, h); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []string{"high", "medium-1", "medium-2", "low"}
	got := r.GetHandlers(HookMessageReceived)
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestRegistry_GetHandlersReturnsCopy(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(HookMessageReceived, &Handler{ID: "a"})

	handlers := r.GetHandlers(HookMessageReceived)
	handlers[0] = &Handler{ID: "replaced"}

	if r.GetHandlers(HookMessageReceived)[0].ID != "a" {
		t.Error("registry must not be affected by modifying the returned slice")
	}
	if r.GetHandlers(HookSessionEnd) != nil {
		t.Error("expected nil for a hook type without handlers")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(HookMessageReceived, &Handler{ID: "a"})
	_ = r.Register(HookBeforeToolCall, &Handler{ID: "b"})

	r.Clear()

	if r.Count() != 0 || r.HasHandlers(HookMessageReceived) {
		t.Error("expected empty registry after Clear")
	}
}
