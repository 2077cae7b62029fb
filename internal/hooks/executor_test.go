package hooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_Execute_EmptyHandlers(t *testing.T) {
	e := NewExecutor()

	result := e.Execute(context.Background(), nil, NewContext(HookBeforeToolCall))
	if !result.Continue {
		t.Error("expected Continue=true for empty handlers")
	}
}

func TestExecutor_Execute_ChainInterruption(t *testing.T) {
	e := NewExecutor()
	secondCalled := false

	handlers := []*Handler{
		{
			ID:      "first",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				return StopResult(), nil
			},
		},
		{
			ID:      "second",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				secondCalled = true
				return ContinueResult(), nil
			},
		},
	}

	result := e.Execute(context.Background(), handlers, NewContext(HookBeforeToolCall))

	if secondCalled {
		t.Error("second handler should not have been called after chain interruption")
	}
	if result.Continue {
		t.Error("expected Continue=false after chain interruption")
	}
	if result.Block {
		t.Error("a plain stop must not block the tool call")
	}
}

func TestExecutor_Execute_Block(t *testing.T) {
	e := NewExecutor()
	laterCalled := false

	handlers := []*Handler{
		{
			ID:      "gate",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				return BlockResult("halted by u1"), nil
			},
		},
		{
			ID:      "later",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				laterCalled = true
				return ContinueResult(), nil
			},
		},
	}

	result := e.Execute(context.Background(), handlers, NewContext(HookBeforeToolCall))

	if !result.Block || result.BlockReason != "halted by u1" {
		t.Errorf("expected block with reason, got %+v", result)
	}
	if result.Continue || laterCalled {
		t.Error("block must stop the chain")
	}
}

func TestExecutor_Execute_ModifiedData(t *testing.T) {
	e := NewExecutor()
	hookCtx := NewContext(HookMessageReceived)

	handlers := []*Handler{
		{
			ID:      "modifier1",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				return ModifiedResult(map[string]any{"key1": "value1"}), nil
			},
		},
		{
			ID:      "modifier2",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				if v, _ := hookCtx.GetData("key1"); v != "value1" {
					t.Errorf("expected key1 visible to later handlers, got %v", v)
				}
				return ModifiedResult(map[string]any{"key2": "value2"}), nil
			},
		},
	}

	result := e.Execute(context.Background(), handlers, hookCtx)

	if !result.Modified {
		t.Error("expected Modified=true")
	}
	if result.Data["key1"] != "value1" || result.Data["key2"] != "value2" {
		t.Errorf("unexpected merged data: %v", result.Data)
	}
}

func TestExecutor_Execute_DisabledHandler(t *testing.T) {
	e := NewExecutor()
	called := false

	handler := &Handler{
		ID:      "disabled",
		Enabled: false,
		Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
			called = true
			return ContinueResult(), nil
		},
	}

	e.Execute(context.Background(), []*Handler{handler}, NewContext(HookMessageReceived))
	if called {
		t.Error("disabled handler should not have been called")
	}
}

func TestExecutor_Execute_ErrorContinues(t *testing.T) {
	e := NewExecutor()
	secondCalled := false

	handlers := []*Handler{
		{
			ID:      "failing",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				return nil, errors.New("boom")
			},
		},
		{
			ID:      "second",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				secondCalled = true
				return ContinueResult(), nil
			},
		},
	}

	result := e.Execute(context.Background(), handlers, NewContext(HookMessageReceived))
	if !secondCalled || !result.Continue {
		t.Error("a handler error without a stop result must not break the chain")
	}
}

func TestExecutor_Execute_PanicRecovery(t *testing.T) {
	e := NewExecutor()
	secondCalled := false

	handlers := []*Handler{
		{
			ID:      "panicking",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				panic("handler exploded")
			},
		},
		{
			ID:      "second",
			Enabled: true,
			Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
				secondCalled = true
				return ContinueResult(), nil
			},
		},
	}

	result := e.Execute(context.Background(), handlers, NewContext(HookBeforeToolCall))
	if !secondCalled {
		t.Error("chain should continue after a recovered panic")
	}
	if !result.Continue {
		t.Error("expected Continue=true after recovered panic")
	}
}

func TestExecutor_Execute_AsyncDoesNotBlock(t *testing.T) {
	e := NewExecutor()
	release := make(chan struct{})
	done := make(chan struct{})

	handler := &Handler{
		ID:      "slow",
		Enabled: true,
		Async:   true,
		Handler: func(ctx context.Context, hookCtx *Context) (*Result, error) {
			<-release
			if ctx.Err() != nil {
				t.Error("async handler context must not be cancelled with the caller")
			}
			close(done)
			return ContinueResult(), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := e.Execute(ctx, []*Handler{handler}, NewContext(HookToolResultPersist))
	cancel()

	if !result.Continue {
		t.Error("expected Continue=true")
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}
